package gateway

import (
	"strings"

	"github.com/speechgate/asr-gateway/internal/backend"
)

// CustomAttributesHeader carries caller routing hints through fronting
// infrastructure that does not expose the request path.
const CustomAttributesHeader = "X-Amzn-SageMaker-Custom-Attributes"

// grpcSizeThreshold is the payload size above which auto routing prefers
// gRPC: large payloads are cheaper to move over a binary protocol, small
// ones favor the simpler HTTP path.
const grpcSizeThreshold = 4 << 20 // 4 MiB

// SelectTransport picks the backend transport for a unary request.
// Precedence: the custom-attributes routing hint, then the caller's explicit
// transport, then payload size.
func SelectTransport(customAttributes string, requested backend.Transport, audioSize int) backend.Transport {
	if strings.Contains(customAttributes, "/invocations/grpc") {
		return backend.TransportGRPC
	}
	if strings.Contains(customAttributes, "/invocations/http") {
		return backend.TransportHTTP
	}

	switch requested {
	case backend.TransportHTTP, backend.TransportGRPC:
		return requested
	}

	if audioSize > grpcSizeThreshold {
		return backend.TransportGRPC
	}
	return backend.TransportHTTP
}
