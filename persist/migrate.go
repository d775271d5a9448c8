package persist

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/stevegt/gptcli/core"
	"github.com/stevegt/semver"
)

// v1 records have no version tag and use the field names of the
// original message history file.
type v1Turn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	ModelName string `json:"model_name,omitempty"`
}

type v1Conv struct {
	ChatName       string   `json:"chat_name"`
	MessageHistory []v1Turn `json:"message_history"`
}

type v1Store struct {
	Version     string   `json:"version,omitempty"`
	ChatNames   []string `json:"chat_names"`
	HistoryList []v1Conv `json:"history_list"`
}

// migrate upgrades a serialized store to the current record version.
// An unknown version is treated as corruption.
func migrate(buf []byte) (out []byte, migrated bool, was, now string, err error) {
	var hdr struct {
		Version string `json:"version"`
	}
	err = json.Unmarshal(buf, &hdr)
	if err != nil {
		return nil, false, "", "", fmt.Errorf("%w: %v", core.ErrStoreCorrupt, err)
	}
	was = hdr.Version
	if was == "" {
		was = "1.0.0"
	}
	now = was
	out = buf

	// loop until migrations are done
	for {
		var v *semver.Version
		v, err = semver.Parse([]byte(now))
		if err != nil {
			return nil, false, was, now, fmt.Errorf("%w: bad version %q: %v", core.ErrStoreCorrupt, now, err)
		}
		// we only care about the major and minor version numbers
		vstr := fmt.Sprintf("%s.%s.X", v.Major, v.Minor)
		switch vstr {
		case "2.0.X":
			// current; patch versions share a layout
			return
		case "1.0.X":
			out, err = migrate1to2(out)
			if err != nil {
				return nil, false, was, now, err
			}
			now = "2.0.0"
			migrated = true
		default:
			return nil, false, was, now, fmt.Errorf("%w: store version %s is not supported by this build (%s)", core.ErrStoreCorrupt, now, Version)
		}
	}
}

// migrate1to2 renames the v1 fields and gives every conversation an id.
func migrate1to2(buf []byte) (out []byte, err error) {
	var old v1Store
	err = json.Unmarshal(buf, &old)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreCorrupt, err)
	}
	rec := storeRecord{
		Version:     "2.0.0",
		ChatNames:   old.ChatNames,
		HistoryList: []convRecord{},
	}
	for i, oc := range old.HistoryList {
		name := oc.ChatName
		if name == "" && i < len(old.ChatNames) {
			name = old.ChatNames[i]
		}
		cr := convRecord{
			ID:    uuid.NewString(),
			Name:  name,
			Turns: []turnRecord{},
		}
		for _, t := range oc.MessageHistory {
			cr.Turns = append(cr.Turns, turnRecord{
				Role:    t.Role,
				Content: t.Content,
				ModelID: t.ModelName,
			})
		}
		rec.HistoryList = append(rec.HistoryList, cr)
	}
	return json.Marshal(rec)
}
