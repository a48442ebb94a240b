// Package v1 defines the webapp session protocol v1 contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
//
// Messages are CBOR maps with exactly one key naming the variant:
//
//	request:  {"LoginSession": {"token": text}}
//	response: {"Ok": {"token": text}} | {"Err": text}
//
// Field names and shapes are part of the contract; both ends decode independently.
package v1
