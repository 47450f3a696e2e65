package models

import (
	"encoding/json"
	"fmt"
)

// Collection names one persisted top-level dataset.
type Collection string

const (
	CollectionRooms    Collection = "rooms"
	CollectionTasks    Collection = "tasks"
	CollectionMessages Collection = "messages"
	CollectionArchives Collection = "archives"
)

var Collections = []Collection{
	CollectionRooms,
	CollectionTasks,
	CollectionMessages,
	CollectionArchives,
}

func (c Collection) IsValid() bool {
	switch c {
	case CollectionRooms, CollectionTasks, CollectionMessages, CollectionArchives:
		return true
	}
	return false
}

// Dataset is the whole board: the live collections plus the archive history.
type Dataset struct {
	Rooms    []Room        `json:"rooms"`
	Tasks    []Task        `json:"tasks"`
	Messages []ChatMessage `json:"messages"`
	Archives []Archive     `json:"archives"`
}

// Clone copies every slice so the result can be mutated independently.
func (d Dataset) Clone() Dataset {
	clone := Dataset{
		Rooms:    append([]Room(nil), d.Rooms...),
		Tasks:    append([]Task(nil), d.Tasks...),
		Messages: append([]ChatMessage(nil), d.Messages...),
		Archives: append([]Archive(nil), d.Archives...),
	}
	return clone
}

// Marshal encodes a single collection of the dataset.
func (d Dataset) Marshal(collection Collection) (json.RawMessage, error) {
	var value any
	switch collection {
	case CollectionRooms:
		value = nonNil(d.Rooms)
	case CollectionTasks:
		value = nonNil(d.Tasks)
	case CollectionMessages:
		value = nonNil(d.Messages)
	case CollectionArchives:
		value = nonNil(d.Archives)
	default:
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	return json.Marshal(value)
}

// DatasetImport is a decoded import document. Present lists the top-level keys that were
// in the document, so absent keys are left untouched and explicitly empty keys clear.
type DatasetImport struct {
	Dataset
	Present []Collection
}

func (i DatasetImport) Has(collection Collection) bool {
	for _, present := range i.Present {
		if present == collection {
			return true
		}
	}
	return false
}

func DecodeDatasetImport(body []byte) (DatasetImport, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return DatasetImport{}, fmt.Errorf("decode import document: %w", err)
	}

	var result DatasetImport
	for _, collection := range Collections {
		value, ok := raw[string(collection)]
		if !ok {
			continue
		}

		var err error
		switch collection {
		case CollectionRooms:
			err = json.Unmarshal(value, &result.Rooms)
		case CollectionTasks:
			err = json.Unmarshal(value, &result.Tasks)
		case CollectionMessages:
			err = json.Unmarshal(value, &result.Messages)
		case CollectionArchives:
			err = json.Unmarshal(value, &result.Archives)
		}
		if err != nil {
			return DatasetImport{}, fmt.Errorf("decode %s: %w", collection, err)
		}
		result.Present = append(result.Present, collection)
	}

	if len(result.Present) == 0 {
		return DatasetImport{}, fmt.Errorf("import document has no known collections")
	}

	return result, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
