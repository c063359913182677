package storage

// Repository is the small key/value surface the business logic persists through.
// Implementations decide where the values end up
type Repository[T any] interface {
	Get(key string) (T, error)
	Set(key string, value T) error
	Delete(key string) error
	List() (map[string]T, error)
}
