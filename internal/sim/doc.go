// Package sim provides in-memory stand-ins for the voice transport, the
// notification sink, the extractor and the catalog. Voice links are
// simulated without producing audio. The interactive console and the
// tests run on it.
package sim
