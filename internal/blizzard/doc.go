// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

/*
Package blizzard implements the Battle.net API client: OAuth token
acquisition, the paced fetch protocol, and the Game Data / Profile calls the
sync pipeline depends on.

# Key Components

  - TokenSource: cached client-credentials tokens with a circuit breaker
    around the token endpoint and one-time rotation to a reserve pair
  - Client: the fetch protocol (rate-limiter admission, static-URL cache,
    429/5xx mapping to RateLimitedError, timeout retries with backoff)
  - CurrentSeasonID / Brackets / LeaderboardCharacters: leaderboard discovery
  - PvPAchievementIndex / CharacterAchievements / PvPRecords: achievement
    index filtering and per-character profile reads
  - ResolveStaticNamespace: versioned static namespace discovery

# Fetch Protocol

Every Game Data and Profile request flows through Client.FetchJSON:

 1. Static URLs (anything that is not a character profile call) are served
    from an unbounded in-process cache for the remainder of the run.
 2. Both token buckets are acquired before the network call, per-second
    first, so sustained throughput never exceeds either allowance.
 3. HTTP 429 and 5xx return a typed RateLimitedError carrying the parsed
    Retry-After hint. The client never retries these itself; the pipeline
    re-queues the work for its next sweep.
 4. Socket timeouts are retried internally with exponential backoff.
 5. Any other status is fatal for that URL.

# Error Handling

Callers distinguish outcomes with errors.Is / errors.As:

	summary, err := client.CharacterAchievements(ctx, realm, name)
	switch {
	case err == nil:
	case errors.Is(err, blizzard.ErrRateLimited):
	    // re-queue for the next sweep
	default:
	    // fatal for this character
	}

# Thread Safety

Client and TokenSource are safe for concurrent use. The sub-batch fan-out in
the pipeline runs many CharacterAchievements calls against one shared Client.

# See Also

  - internal/ratelimit: the token bucket implementation
  - internal/pipeline: discovery, fan-out, and the retry sweep loop
*/
package blizzard
