package transmission

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/sweep/internal/domain"
)

const (
	methodTorrentGet    = "torrent-get"
	methodTorrentRemove = "torrent-remove"
)

// torrentFields is the fixed field set requested on every fetch.
var torrentFields = []string{
	"id",
	"name",
	"percentDone",
	"uploadRatio",
	"addedDate",
	"downloadDir",
	"labels",
	"error",
	"errorString",
	"trackers",
}

type torrentGetArgs struct {
	Fields []string `json:"fields"`
}

type torrentGetResult struct {
	Torrents []wireTorrent `json:"torrents"`
}

// wireTorrent mirrors the daemon payload. A null or absent JSON value leaves
// the Go zero value in place.
type wireTorrent struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	PercentDone float64       `json:"percentDone"`
	UploadRatio float64       `json:"uploadRatio"`
	AddedDate   int64         `json:"addedDate"`
	DownloadDir string        `json:"downloadDir"`
	Labels      []string      `json:"labels"`
	Error       int           `json:"error"`
	ErrorString string        `json:"errorString"`
	Trackers    []wireTracker `json:"trackers"`
}

type wireTracker struct {
	Announce string `json:"announce"`
}

type torrentRemoveArgs struct {
	IDs             []int64 `json:"ids"`
	DeleteLocalData bool    `json:"delete-local-data"`
}

// fetchOnce performs a single torrent-get without discovery retry.
func (c *Client) fetchOnce(ctx context.Context) ([]domain.RawTorrent, error) {
	var result torrentGetResult
	if err := c.call(ctx, methodTorrentGet, torrentGetArgs{Fields: torrentFields}, &result); err != nil {
		return nil, err
	}

	torrents := make([]domain.RawTorrent, 0, len(result.Torrents))
	for _, wt := range result.Torrents {
		torrents = append(torrents, wt.toRaw())
	}
	return torrents, nil
}

func (wt wireTorrent) toRaw() domain.RawTorrent {
	labels := wt.Labels
	if labels == nil {
		labels = []string{}
	}

	trackers := make([]string, 0, len(wt.Trackers))
	for _, tr := range wt.Trackers {
		trackers = append(trackers, tr.Announce)
	}

	return domain.RawTorrent{
		ID:           wt.ID,
		Name:         wt.Name,
		PercentDone:  wt.PercentDone,
		UploadRatio:  wt.UploadRatio,
		AddedDate:    wt.AddedDate,
		DownloadDir:  wt.DownloadDir,
		Labels:       labels,
		Trackers:     trackers,
		ErrorCode:    wt.Error,
		ErrorMessage: wt.ErrorString,
	}
}

// RemoveTorrents issues one batched torrent-remove for all ids. It is never
// retried here; a failed call removes nothing.
func (c *Client) RemoveTorrents(ctx context.Context, ids []int64, deleteLocalData bool) error {
	if len(ids) == 0 {
		return nil
	}

	args := torrentRemoveArgs{IDs: ids, DeleteLocalData: deleteLocalData}
	if err := c.call(ctx, methodTorrentRemove, args, nil); err != nil {
		return fmt.Errorf("failed to remove %d torrents: %w", len(ids), err)
	}
	return nil
}
