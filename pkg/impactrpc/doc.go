// Package impactrpc is the wire contract between bumpwatch-agent and
// bumpwatch-server: the ImpactService gRPC service and its messages.
//
// Messages are plain Go structs carried with a JSON codec registered under
// the "json" content-subtype, so no generated code is needed. Clients must
// call with grpc.CallContentSubtype(CodecName); NewImpactServiceClient does
// this for every call.
package impactrpc
