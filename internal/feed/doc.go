// Package feed is the public face of the ingestion engine.
//
// A Service accepts subscriptions for (venue, symbol) pairs, reconciles the
// level sets coming off each venue session into 20-level books, and delivers
// them to the subscriber's callback: the first significant book right away,
// later ones at most once per throttle window. A subscription that sees no
// data before the fallback timeout receives an empty book instead.
//
// Every callback runs on the event loop and must not block.
package feed
