package cache

// NullCache never holds anything.
type NullCache struct{}

func NewNullCache() *NullCache {
	return &NullCache{}
}

func (NullCache) Get(string) ([]byte, error) { return nil, ErrMiss }
func (NullCache) Set(string, []byte) error   { return nil }
func (NullCache) Unset(string) error         { return nil }
func (NullCache) Close() error               { return nil }
