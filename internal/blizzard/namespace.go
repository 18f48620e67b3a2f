// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package blizzard

import (
	"context"
	"fmt"
	"strings"

	"github.com/liamnap/RatedStats-Achiev/internal/logging"
)

type namespaceProbeResponse struct {
	Links struct {
		Self struct {
			Href string `json:"href"`
		} `json:"self"`
	} `json:"_links"`
}

// ResolveStaticNamespace discovers the fully versioned static namespace for
// the region (e.g. "static-11.2.0_62213-eu"). The API redirects the generic
// "static-<region>" alias and reports the resolved namespace in the self
// link of any static document; the achievement category index is the
// cheapest one to probe.
//
// Any failure short of context cancellation falls back to the generic
// alias, which the API accepts for all static calls.
func (c *Client) ResolveStaticNamespace(ctx context.Context) (string, error) {
	fallback := "static-" + c.region
	reqURL := fmt.Sprintf("%s/data/wow/achievement-category/index?namespace=%s&locale=en_US", c.apiBase, fallback)

	var probe namespaceProbeResponse
	if err := c.FetchJSON(ctx, reqURL, &probe); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logging.Warn().
			Str("region", c.region).
			Err(err).
			Msg("[DISCOVERY] Static namespace probe failed, using generic alias")
		return fallback, nil
	}

	if ns := namespaceFromHref(probe.Links.Self.Href); ns != "" {
		return ns, nil
	}
	return fallback, nil
}

// namespaceFromHref pulls the namespace query value out of a self-link href.
// The last "namespace=" occurrence wins, cut at the next parameter.
func namespaceFromHref(href string) string {
	idx := strings.LastIndex(href, "namespace=")
	if idx < 0 {
		return ""
	}
	ns := href[idx+len("namespace="):]
	if amp := strings.Index(ns, "&"); amp >= 0 {
		ns = ns[:amp]
	}
	return ns
}
