package echo

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Descriptor is the interface identifier of IEcho on the wire
const Descriptor = "drpc://interfaces/echo/IEcho"

// ServiceName is the name under which nodes publish their echo object
const ServiceName = "drpc://services/echo"

// Operation codes of IEcho
const (
	OpEcho   int32 = 1
	OpPing   int32 = 2
	OpNotify int32 = 3
)

// IEcho is a minimal remote interface used to exercise the transport.
// Implementations must be safe for concurrent use.
type IEcho interface {
	// Echo returns msg unchanged.
	Echo(msg string) (reply string, err error)
	// Ping returns "pong".
	Ping() (reply string, err error)
	// Notify delivers msg without waiting for the remote side. Only local write failures are reported.
	Notify(msg string) (err error)
}
