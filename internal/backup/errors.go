package backup

import (
	"git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
)

var (
	// ErrOpenFailed indicates the SQLite database could not be opened.
	ErrOpenFailed = errors.StorageError("could not open backup database").Build()

	// ErrSchemaFailed indicates the database schema could not be initialized.
	ErrSchemaFailed = errors.StorageError("failed to initialize backup schema").Build()

	// ErrSaveFailed indicates writing a backup failed.
	ErrSaveFailed = errors.StorageError("failed to save backup").Build()

	// ErrQueryFailed indicates reading backups failed.
	ErrQueryFailed = errors.StorageError("failed to query backups").Build()

	// ErrDeleteFailed indicates removing a backup failed.
	ErrDeleteFailed = errors.StorageError("failed to delete backup").Build()

	// ErrEncodeFailed indicates events could not be serialized.
	ErrEncodeFailed = errors.InternalError("failed to encode events").Build()

	// ErrDecodeFailed indicates stored or exported content is not an event list.
	ErrDecodeFailed = errors.ValidationError("content is not a list of events").Build()

	// ErrNotFound indicates no backup has the requested name.
	ErrNotFound = errors.NotFoundError("backup not found").Build()
)

func wrap(kind *errors.ClassifiedError, cause error, name string) *errors.ClassifiedError {
	b := errors.NewError(kind.Category(), kind.Message()).
		WithSeverity(kind.Severity()).
		WithRetry(kind.RetryStrategy()).
		WithCause(cause)
	if name != "" {
		b = b.WithContext("backup", name)
	}
	return b.Build()
}
