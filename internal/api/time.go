package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rickgao/bookfeed/internal/model"
)

// ErrUnsupportedVenue is returned for venues without a known time endpoint.
var ErrUnsupportedVenue = errors.New("no time endpoint for venue")

// Time endpoint paths, relative to the venue's REST base URL.
const (
	OKXTimePath     = "/public/time"
	BybitTimePath   = "/market/time"
	DeribitTimePath = "/public/get_time"
)

type okxTimeResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Ts string `json:"ts"`
	} `json:"data"`
}

type bybitTimeResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		TimeSecond string `json:"timeSecond"`
		TimeNano   string `json:"timeNano"`
	} `json:"result"`
}

type deribitTimeResponse struct {
	Result int64 `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ServerTime asks the venue for its clock.
func (c *Client) ServerTime(ctx context.Context, venue model.VenueID) (time.Time, error) {
	switch venue {
	case model.OKX:
		var resp okxTimeResponse
		if err := c.get(ctx, OKXTimePath, &resp); err != nil {
			return time.Time{}, err
		}
		if resp.Code != "0" || len(resp.Data) == 0 {
			return time.Time{}, fmt.Errorf("okx time: code %s: %s", resp.Code, resp.Msg)
		}
		return parseMillisString(resp.Data[0].Ts)

	case model.Bybit:
		var resp bybitTimeResponse
		if err := c.get(ctx, BybitTimePath, &resp); err != nil {
			return time.Time{}, err
		}
		if resp.RetCode != 0 {
			return time.Time{}, fmt.Errorf("bybit time: code %d: %s", resp.RetCode, resp.RetMsg)
		}
		if resp.Result.TimeNano != "" {
			ns, err := strconv.ParseInt(resp.Result.TimeNano, 10, 64)
			if err != nil {
				return time.Time{}, fmt.Errorf("bybit time: %w", err)
			}
			return time.Unix(0, ns), nil
		}
		sec, err := strconv.ParseInt(resp.Result.TimeSecond, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("bybit time: %w", err)
		}
		return time.Unix(sec, 0), nil

	case model.Deribit:
		var resp deribitTimeResponse
		if err := c.get(ctx, DeribitTimePath, &resp); err != nil {
			return time.Time{}, err
		}
		if resp.Error != nil {
			return time.Time{}, fmt.Errorf("deribit time: code %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return time.UnixMilli(resp.Result), nil
	}

	return time.Time{}, fmt.Errorf("%w: %s", ErrUnsupportedVenue, venue)
}

func parseMillisString(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return time.UnixMilli(ms), nil
}
