// Package gdocs implements export.Exporter on top of the Google Docs API.
//
// Before each export the exporter resolves an OAuth2 credential. It tries, in
// order, a blob held in a secrets store, then the locally persisted token
// file, then a silent refresh of an expired credential. As a last resort it
// runs an interactive consent flow, which is only possible when a client
// registration file (credentials.json) is present. Credentials obtained by
// refresh or consent are written back to the token file.
package gdocs
