// Package normalisers holds the Normaliser implementations that turn raw
// corpus files into documents before chunking.
package normalisers
