package reconcile

// Index maps record keys to listed items. Keys compare exactly.
type Index[T any] map[string]Item[T]

// BuildIndex indexes items by key. On duplicate keys the first item wins.
func BuildIndex[T any](items []Item[T], key func(T) string) Index[T] {
	index := make(Index[T], len(items))
	for _, item := range items {
		k := key(item.Value)
		if _, exists := index[k]; exists {
			continue
		}
		index[k] = item
	}
	return index
}

// MatchByName looks up name in index. It is case-sensitive and has no side effects.
func MatchByName[T any](index Index[T], name string) (Item[T], bool) {
	item, ok := index[name]
	return item, ok
}
