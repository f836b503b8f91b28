package rabbitmq

import (
	"errors"
	"io"
	"net/http"

	rabbithole "github.com/michaelklishin/rabbit-hole/v2"

	provisioner "github.com/datakaveri/dx-resource-server-sub001"
)

// statusOf extracts the HTTP status from a management API error, or 0.
func statusOf(err error) int {
	var resp rabbithole.ErrorResponse
	if errors.As(err, &resp) {
		return resp.StatusCode
	}
	var respPtr *rabbithole.ErrorResponse
	if errors.As(err, &respPtr) && respPtr != nil {
		return respPtr.StatusCode
	}
	return 0
}

// mapError converts a management API failure into the provisioning error kinds.
func mapError(err error, message string) error {
	if err == nil {
		return nil
	}
	switch statusOf(err) {
	case http.StatusNotFound:
		return provisioner.NewErrorWithCause(provisioner.ErrCodeNotFound, message, err)
	case http.StatusConflict:
		return provisioner.NewErrorWithCause(provisioner.ErrCodeConflict, message, err)
	default:
		return provisioner.NewErrorWithCause(provisioner.ErrCodeBroker, message, err)
	}
}

func isNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// closeBody releases a management API response.
func closeBody(res *http.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}
