package export

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/server/internal/api"
)

type fakeS3 struct {
	bucket, key, contentType string
	body                     string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func sampleList() api.ListResponse {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return api.BuildList([]bump.Record{
		{ID: "1", StreetName: "Main Street", ExactLocation: "Near City Hall, by the crosswalk", Condition: bump.HealthCondition(9200), CarCount: 1245, LastUpdated: now},
	}, bump.FilterAll, now)
}

func TestParseDestination(t *testing.T) {
	tests := []struct {
		in      string
		want    Destination
		wantErr bool
	}{
		{"out/bumps.json", Destination{Path: "out/bumps.json"}, false},
		{"s3://city-roads/exports/bumps.csv", Destination{Bucket: "city-roads", Key: "exports/bumps.csv"}, false},
		{"s3://city-roads", Destination{}, true},
		{"s3://city-roads/dir/", Destination{}, true},
		{"", Destination{}, true},
	}
	for _, tc := range tests {
		got, err := ParseDestination(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestSave_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bumps.json")
	require.NoError(t, Save(context.Background(), Destination{Path: path}, []byte("first"), Options{}))
	require.NoError(t, Save(context.Background(), Destination{Path: path}, []byte("second"), Options{}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestSave_S3(t *testing.T) {
	fake := &fakeS3{}
	dest, err := ParseDestination("s3://city-roads/exports/bumps.json")
	require.NoError(t, err)

	err = Save(context.Background(), dest, []byte(`{"count":1}`), Options{S3: fake, ContentType: "application/json"})
	require.NoError(t, err)
	assert.Equal(t, "city-roads", fake.bucket)
	assert.Equal(t, "exports/bumps.json", fake.key)
	assert.Equal(t, "application/json", fake.contentType)
	assert.Equal(t, `{"count":1}`, fake.body)
}

func TestEncode(t *testing.T) {
	data, ct, err := Encode(sampleList(), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", ct)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,street_name,exact_location,status,health,car_count,last_updated", lines[0])
	assert.Equal(t, `1,Main Street,"Near City Hall, by the crosswalk",Good,9200,1245,2026-03-01T12:00:00Z`, lines[1])

	data, ct, err = Encode(sampleList(), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "application/json", ct)
	assert.Contains(t, string(data), `"street_name": "Main Street"`)

	_, _, err = Encode(sampleList(), "xml")
	assert.Error(t, err)
}
