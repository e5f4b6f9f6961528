package model

type indexerImplementation struct {
	periods int
	days    int
}

func (indexer *indexerImplementation) Index(period, day int) int {
	return period + indexer.periods*day
}

func (indexer *indexerImplementation) Attributes(index int) (period, day int) {
	period = index % indexer.periods
	day = index / indexer.periods
	return period, day
}

func (indexer *indexerImplementation) Cells() int {
	return indexer.periods * indexer.days
}
