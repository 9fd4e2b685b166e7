package core

// MultiValueResult is one page of a logical result set. TotalCount is the
// size of the set before paging and is never below len(Items).
type MultiValueResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"count"`
}

func NewMultiValueResult[T any](items []T, total int64) MultiValueResult[T] {
	copied := append([]T(nil), items...)
	if total < int64(len(copied)) {
		total = int64(len(copied))
	}
	return MultiValueResult[T]{Items: copied, TotalCount: total}
}

func (r MultiValueResult[T]) Len() int { return len(r.Items) }

func (r MultiValueResult[T]) Count() int64 { return r.TotalCount }

// ResultAggregator concatenates results in add order and sums their counts.
// It is not safe for concurrent writers.
type ResultAggregator[T any] struct {
	items []T
	count int64
}

func NewResultAggregator[T any]() *ResultAggregator[T] {
	return &ResultAggregator[T]{}
}

func AggregateItems[T any](items []T) MultiValueResult[T] {
	return NewResultAggregator[T]().AddItems(items...).Build()
}

func (a *ResultAggregator[T]) AddItems(items ...T) *ResultAggregator[T] {
	if len(items) == 0 {
		return a
	}
	a.items = append(a.items, items...)
	a.count += int64(len(items))
	return a
}

func (a *ResultAggregator[T]) AddResult(result *MultiValueResult[T]) *ResultAggregator[T] {
	if result == nil {
		return a
	}
	a.items = append(a.items, result.Items...)
	total := result.TotalCount
	if total < int64(len(result.Items)) {
		total = int64(len(result.Items))
	}
	a.count += total
	return a
}

// Build returns a snapshot; later adds do not affect it.
func (a *ResultAggregator[T]) Build() MultiValueResult[T] {
	items := make([]T, len(a.items))
	copy(items, a.items)
	return MultiValueResult[T]{Items: items, TotalCount: a.count}
}
