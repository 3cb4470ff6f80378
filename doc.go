// Package partnergate is the partner gateway core for a transport booking
// platform: distributed rate limiting, API credential lifecycle, reliable
// webhook dispatch, and delivery tracking behind one wiring point.
//
// Partnergate is a library, not a service. Import it into your application
// to get per-partner and per-credential quota enforcement, single-disclosure
// API secrets, at-least-once webhook delivery with HMAC signatures and
// exponential backoff, and per-partner usage analytics.
//
// Key features:
//   - Fixed-window rate limiting over a shared counting store, so every
//     gateway instance enforces one quota view
//   - Credential issuance, rotation, and revocation; plaintext secrets are
//     returned exactly once and only a salted hash is persisted
//   - Durable webhook delivery queue with atomic claims, retries, and replay
//   - Append-only delivery attempt log with latency percentiles
//   - Composable store pattern with Redis, MongoDB, and in-memory backends
//
// Quick start:
//
//	g, err := partnergate.New(
//	    partnergate.WithStore(memoryStore),
//	    partnergate.WithCounter(counter),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	g.Start(ctx)
//
//	g.Dispatch(ctx, &event.Event{
//	    Type:      event.TypeBookingCreated,
//	    PartnerID: ptnID,
//	    Data: event.BookingPayload{
//	        BookingReference: "BK-2025-001",
//	        Status:           "created",
//	    },
//	})
package partnergate
