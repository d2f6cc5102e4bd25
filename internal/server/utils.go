package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/tensorplex-labs/molgan/internal/artifact"
)

// createResponse creates a StdResponse with the given body and error
func createResponse[T any](body T, err error) StdResponse[T] {
	if err != nil {
		errMsg := err.Error()
		return StdResponse[T]{
			Body:  body,
			Error: &errMsg,
		}
	}
	return StdResponse[T]{
		Body:  body,
		Error: nil,
	}
}

// artifactError maps a missing artifact to 404 and anything else to 500.
func artifactError(err error) error {
	if artifact.IsMissing(err) {
		var m *artifact.MissingArtifactError
		errors.As(err, &m)
		return fiber.NewError(fiber.StatusNotFound, m.Error())
	}
	return err
}
