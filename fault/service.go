package fault

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeTimeout         = "UPSTREAM_TIMEOUT"
	TextCodeBadInput        = "BAD_INPUT"
	TextCodeUpstreamFailure = "UPSTREAM_FAILURE"
)

// HTTPStatus maps err to the status a route layer should answer with:
// timeouts 504, client rejections and validation errors 400, everything else 502.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindClientRejection, KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// ToServiceError converts err into a go-errors envelope carrying the mapped
// HTTP status, a text code and the remote status when known.
func ToServiceError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	category := goerrors.CategoryExternal
	textCode := TextCodeUpstreamFailure
	switch kind {
	case KindTimeout:
		textCode = TextCodeTimeout
	case KindValidation:
		category = goerrors.CategoryValidation
		textCode = TextCodeBadInput
	case KindClientRejection:
		category = goerrors.CategoryBadInput
		textCode = TextCodeBadInput
	}

	out := goerrors.Wrap(err, category, err.Error()).
		WithCode(HTTPStatus(err)).
		WithTextCode(textCode)

	metadata := map[string]any{}
	if kind != "" {
		metadata["kind"] = string(kind)
	}
	if status := StatusOf(err); status > 0 {
		metadata["remote_status"] = status
	}
	if len(metadata) > 0 {
		out.WithMetadata(metadata)
	}
	return out
}
