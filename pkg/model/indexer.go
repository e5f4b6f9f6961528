package model

// indexer interface is design to give a unique index to a (day, period) cell and vice versa
type indexer interface {
	// Returns a unique index to a combination of day and global period
	Index(period, day int) int
	// Returns the day and global period of a unique index
	Attributes(index int) (period int, day int)
	// Returns the total amount of cells
	Cells() int
}

func newIndexer(periods, days int) indexer {
	return &indexerImplementation{
		periods: periods,
		days:    days,
	}
}
