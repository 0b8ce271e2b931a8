package models

// Output port names exposed by blocks.
const (
	PortSuccess = "success"
	PortFailure = "failure"
	PortLoop    = "loop"
	PortTrue    = "true"  // Conditional blocks only
	PortFalse   = "false" // Conditional blocks only
)

// ConnectionType tags the kind of edge between two blocks.
type ConnectionType string

const (
	ConnectionSuccess   ConnectionType = "success"
	ConnectionFailure   ConnectionType = "failure"
	ConnectionLoop      ConnectionType = "loop"
	ConnectionTruePath  ConnectionType = "true-path"
	ConnectionFalsePath ConnectionType = "false-path"
)

// ConnectionTypeForPort maps an output port name to the connection type it produces.
func ConnectionTypeForPort(port string) (ConnectionType, bool) {
	switch port {
	case PortSuccess:
		return ConnectionSuccess, true
	case PortFailure:
		return ConnectionFailure, true
	case PortLoop:
		return ConnectionLoop, true
	case PortTrue:
		return ConnectionTruePath, true
	case PortFalse:
		return ConnectionFalsePath, true
	default:
		return "", false
	}
}

// Connection is a directed edge from one block's output port to another block.
type Connection struct {
	ID         string         `json:"id"          validate:"required"`
	Source     string         `json:"source"      validate:"required"` // BlockInstance.ID
	SourcePort string         `json:"source_port" validate:"required"`
	Target     string         `json:"target"      validate:"required"` // BlockInstance.ID
	Type       ConnectionType `json:"type"        validate:"required"`
}

// Touches reports whether the connection references the block as source or target.
func (c *Connection) Touches(blockID string) bool {
	return c.Source == blockID || c.Target == blockID
}

// ParsePortID parses a port ID in format "{block_id}:{port_name}" into components.
// Block IDs may not contain ':' so the last separator wins.
func ParsePortID(portID string) (string, string, bool) {
	for i := len(portID) - 1; i >= 0; i-- {
		if portID[i] == ':' {
			if i == 0 || i == len(portID)-1 {
				return "", "", false
			}

			return portID[:i], portID[i+1:], true
		}
	}

	return "", "", false
}

// MakePortID creates a port ID from block ID and port name.
func MakePortID(blockID, portName string) string {
	return blockID + ":" + portName
}
