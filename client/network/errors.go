package network

// ErrConnectionClosedByServer is returned when the server closes the connection
type ErrConnectionClosedByServer struct{}

func (e *ErrConnectionClosedByServer) Error() string {
	return "connection closed by server"
}

// ErrConnectionClosedByClient is returned when the connection is closed locally
type ErrConnectionClosedByClient struct{}

func (e *ErrConnectionClosedByClient) Error() string {
	return "connection closed by client"
}

func IsConnectionClosedByServer(err error) bool {
	_, ok := err.(*ErrConnectionClosedByServer)
	return ok
}
