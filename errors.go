package vidsite

import (
	"vidsite/storage"
	"vidsite/youtube"
)

// Error types exported for library users.
//
// Sentinel errors support errors.Is():
//
//	if errors.Is(err, vidsite.ErrUnchanged) {
//		// cached copy still valid
//	}
//
// Wrapped errors support errors.As():
//
//	var storeErr *vidsite.StoreError
//	if errors.As(err, &storeErr) {
//		fmt.Printf("%s failed on %s\n", storeErr.Op, storeErr.Doc)
//	}

// Type aliases for convenient error handling.
type (
	// StoreError wraps errors during document store operations.
	StoreError = storage.StoreError
)

// Sentinel errors exported from sub-packages.
var (
	// ErrRateLimited indicates the provider refused the call for quota or
	// rate reasons; the quota ledger is marked exhausted when this happens.
	ErrRateLimited = youtube.ErrRateLimited
	// ErrUnchanged indicates a conditional fetch found the cached copy current.
	ErrUnchanged = youtube.ErrUnchanged
	// ErrItemNotFound indicates the requested item does not exist upstream.
	ErrItemNotFound = youtube.ErrItemNotFound
	// ErrChannelNotFound indicates the configured channel handle resolves to nothing.
	ErrChannelNotFound = youtube.ErrChannelNotFound
	// ErrConfiguration indicates missing or invalid credentials or settings.
	ErrConfiguration = youtube.ErrConfiguration

	// Storage errors
	// ErrCorrupt indicates a store document failed to decode.
	ErrCorrupt = storage.ErrCorrupt
	// ErrDuplicateID indicates two records share an external id.
	ErrDuplicateID = storage.ErrDuplicateID
	// ErrLockTimeout indicates a timeout acquiring the store's file lock.
	ErrLockTimeout = storage.ErrLockTimeout
)

// IsTransient reports whether an error is worth retrying on a later pass.
// Rate-limit errors are never transient; they end the day's budget.
func IsTransient(err error) bool {
	return youtube.IsTransient(err)
}
