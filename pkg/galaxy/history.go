package galaxy

import (
	"context"
	"errors"
	"net/url"
)

var ErrNotFound = errors.New("galaxy: not found")

type History struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// Dataset is an item in a history.
type Dataset struct {
	Id    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// DatasetOk is the state of a dataset ready to be used.
const DatasetOk = "ok"

// FindHistory returns the first history having the name.
//
// When there are no such histories, it returns ErrNotFound.
func (c *Client) FindHistory(ctx context.Context, name string) (History, error) {
	var histories []History
	query := url.Values{"q": {"name"}, "qv": {name}}
	if err := c.get(ctx, "/api/histories", query, &histories); err != nil {
		return History{}, err
	}
	for _, h := range histories {
		if h.Name == name {
			return h, nil
		}
	}
	return History{}, ErrNotFound
}

func (c *Client) CreateHistory(ctx context.Context, name string) (History, error) {
	var h History
	if err := c.post(ctx, "/api/histories", map[string]string{"name": name}, &h); err != nil {
		return History{}, err
	}
	return h, nil
}

// GetOrCreateHistory returns the history having the name, creating one if missing.
func (c *Client) GetOrCreateHistory(ctx context.Context, name string) (History, error) {
	h, err := c.FindHistory(ctx, name)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return History{}, err
	}
	c.log.Infof("creating Galaxy history %q", name)
	return c.CreateHistory(ctx, name)
}

// HistoryContents lists datasets in the history.
func (c *Client) HistoryContents(ctx context.Context, historyId string) ([]Dataset, error) {
	var contents []Dataset
	if err := c.get(ctx, "/api/histories/"+url.PathEscape(historyId)+"/contents", nil, &contents); err != nil {
		return nil, err
	}
	return contents, nil
}
