package models

// ChannelData is the stored state of one channel.
type ChannelData struct {
	Channel Channel          `json:"channel"`
	Events  map[int64]*Event `json:"events"`
}

// Storage is the persistence envelope written to the snapshot file.
// Version guards against loading snapshots from incompatible builds.
type Storage struct {
	Version   int                     `json:"version"`
	NextID    int64                   `json:"next_id"`
	Channels  map[string]*ChannelData `json:"channels"`
	LastSaved string                  `json:"last_saved,omitempty"`
}

const StorageVersion = 1
