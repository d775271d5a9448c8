package persist

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stevegt/gptcli/core"
)

// Version is the current store record version.
const Version = "2.0.0"

type turnRecord struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	ModelID string `json:"model_id,omitempty"`
}

type convRecord struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Created time.Time    `json:"created"`
	Turns   []turnRecord `json:"turns"`
}

// storeRecord is the whole store as written to disk.  ChatNames is
// parallel to HistoryList.
type storeRecord struct {
	Version     string       `json:"version"`
	ChatNames   []string     `json:"chat_names"`
	HistoryList []convRecord `json:"history_list"`
}

func encodeConv(c *core.Conversation) convRecord {
	meta := c.Meta()
	rec := convRecord{
		ID:      meta.ID,
		Name:    c.Name(),
		Created: meta.Created,
		Turns:   []turnRecord{},
	}
	for _, t := range c.Turns() {
		rec.Turns = append(rec.Turns, turnRecord{
			Role:    string(t.Role),
			Content: t.Content,
			ModelID: t.ModelID,
		})
	}
	return rec
}

func decodeConv(rec convRecord) (c *core.Conversation, err error) {
	var turns []core.Turn
	for _, t := range rec.Turns {
		turns = append(turns, core.Turn{
			Role:    core.Role(t.Role),
			Content: t.Content,
			ModelID: t.ModelID,
		})
	}
	c, err = core.RestoreConversation(rec.Name, core.Meta{ID: rec.ID, Created: rec.Created}, turns)
	if err != nil {
		return nil, fmt.Errorf("%w: conversation %q: %v", core.ErrStoreCorrupt, rec.Name, err)
	}
	return
}

func encode(names []string, convs []*core.Conversation) (rec storeRecord) {
	rec = storeRecord{
		Version:     Version,
		ChatNames:   append([]string{}, names...),
		HistoryList: []convRecord{},
	}
	for _, c := range convs {
		rec.HistoryList = append(rec.HistoryList, encodeConv(c))
	}
	return
}

func (rec storeRecord) decode() (names []string, convs []*core.Conversation, err error) {
	if len(rec.ChatNames) != len(rec.HistoryList) {
		return nil, nil, fmt.Errorf("%w: %d names but %d conversations", core.ErrStoreCorrupt, len(rec.ChatNames), len(rec.HistoryList))
	}
	for _, cr := range rec.HistoryList {
		var c *core.Conversation
		c, err = decodeConv(cr)
		if err != nil {
			return nil, nil, err
		}
		convs = append(convs, c)
	}
	return rec.ChatNames, convs, nil
}

func marshal(names []string, convs []*core.Conversation) ([]byte, error) {
	return json.MarshalIndent(encode(names, convs), "", "  ")
}
