package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Command/rule layer.
	ErrBadRequest       = "E_BAD_REQUEST"
	ErrNoPermission     = "E_NO_PERMISSION"
	ErrNoResource       = "E_NO_RESOURCE"
	ErrNoGeometry       = "E_NO_GEOMETRY"
	ErrInsufficientData = "E_INSUFFICIENT_DATA"
	ErrInvalidTarget    = "E_INVALID_TARGET"
	ErrRateLimit        = "E_RATE_LIMIT"
	ErrInternal         = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrBadRequest:       {},
	ErrNoPermission:     {},
	ErrNoResource:       {},
	ErrNoGeometry:       {},
	ErrInsufficientData: {},
	ErrInvalidTarget:    {},
	ErrRateLimit:        {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
