package utils

import (
	"fmt"
)

// LocalAddress returns the HTTP URL of a service listening on the loopback interface at port.
func LocalAddress(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}
