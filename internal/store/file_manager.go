package store

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"pickd/internal/models"
	"pickd/internal/providers"
	"pickd/internal/store/interfaces"
)

// FileManager persists the store as a zstd-compressed JSON snapshot.
// Writes go through a tmp file and rename, so a crash mid-save leaves
// the previous snapshot intact.
type FileManager struct {
	store      EventStoreInterface
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewFileManager(compressor interfaces.CompressorInterface, store EventStoreInterface, logger providers.Logger) *FileManager {
	return &FileManager{
		compressor: compressor,
		store:      store,
		logger:     logger,
	}
}

func (f *FileManager) SaveToFile(fileName string) error {
	snapshot := f.store.Snapshot()

	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return models.NewTerminalStoreError(err)
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return models.NewTransientStoreError(err)
	}

	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return models.NewTransientStoreError(err)
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return models.NewTransientStoreError(err)
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return models.NewTransientStoreError(err)
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return models.NewTransientStoreError(err)
	}

	if err = os.Rename(tmpFile, fileName); err != nil {
		return models.NewTransientStoreError(err)
	}
	return nil
}

func (f *FileManager) LoadFromFile(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return models.NewTransientStoreError(err)
	}

	decompressedData, err := f.compressor.Decompress(data)
	if err != nil {
		f.logger.Errorf(providers.TypeApp, "Snapshot is not a valid zstd stream: %s", err)
		return models.NewTerminalStoreError(err)
	}

	var snapshot models.Storage
	if err := json.Unmarshal(decompressedData, &snapshot); err != nil {
		f.logger.Errorf(providers.TypeApp, "Snapshot decode failed: %s", err)
		return models.NewTerminalStoreError(err)
	}
	if snapshot.Version != models.StorageVersion {
		err := fmt.Errorf("unsupported snapshot version %d", snapshot.Version)
		f.logger.Errorf(providers.TypeApp, "%s", err)
		return models.NewTerminalStoreError(err)
	}
	if snapshot.Channels == nil {
		snapshot.Channels = make(map[string]*models.ChannelData)
	}
	for name, cd := range snapshot.Channels {
		for id, ev := range cd.Events {
			if !ev.Rule.Valid() {
				err := fmt.Errorf("snapshot event %s/%d has unknown recurrence rule %q", name, id, ev.Rule)
				f.logger.Errorf(providers.TypeApp, "%s", err)
				return models.NewTerminalStoreError(err)
			}
		}
	}

	f.store.Restore(&snapshot)
	return nil
}

func (f *FileManager) Close() {
	f.compressor.Close()
}
