package interfaces

type CompressorInterface interface {
	Compress(val []byte) ([]byte, error)
	Decompress(val []byte) ([]byte, error)
	Close()
}

type SchedulerInterface interface {
	Init()
	Stop()
	Restore() error
	Persist() error
}

// SweeperInterface fast-forwards stale recurring events. Implemented by
// the event service so the sweep honors per-event tokens.
type SweeperInterface interface {
	SweepRollovers() int
}
