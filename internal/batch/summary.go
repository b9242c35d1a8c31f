package batch

import "github.com/alphagov/transition-mappings/internal/db"

// Summary counts what processing a batch's entries would do
type Summary struct {
	NewRedirects  int `json:"new_redirects"`
	NewArchives   int `json:"new_archives"`
	NewUnresolved int `json:"new_unresolved"`
	Existing      int `json:"existing"`
	Processed     int `json:"processed"`
}

// Summarize counts entries by type, separating those that already have a mapping
func Summarize(entries []db.MappingsBatchEntry) Summary {
	var s Summary
	for _, e := range entries {
		if e.Processed {
			s.Processed++
		}
		if e.MappingID != nil {
			s.Existing++
			continue
		}
		switch e.Type {
		case db.TypeRedirect:
			s.NewRedirects++
		case db.TypeArchive:
			s.NewArchives++
		default:
			s.NewUnresolved++
		}
	}
	return s
}
