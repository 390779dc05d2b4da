// Package messages defines the two wire messages exchanged by the push and
// pull protocols, with both a compact DAG-CBOR encoding (for the wire) and a
// human-readable JSON encoding (bloom bytes base64url, for debugging/logs).
package messages

import (
	"encoding/base64"
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
	cid "github.com/ipfs/go-cid"

	"github.com/fission-codes/go-car-mirror/errs"
)

// PullRequest is the initial and follow-up message sent by a pull
// requestor: the roots it still needs, plus its current have-set sketch.
type PullRequest struct {
	Resources      []cid.Cid
	BloomHashCount uint32
	BloomBytes     []byte
}

// PushResponse is sent in response to a push request: the subgraph roots
// still missing on the receiver's side, plus its current have-set sketch.
type PushResponse struct {
	SubgraphRoots  []cid.Cid
	BloomHashCount uint32
	BloomBytes     []byte
}

// IndicatesFinished reports whether the protocol is done: a PullRequest
// with no resources left to ask for needs no further round.
func (r PullRequest) IndicatesFinished() bool { return len(r.Resources) == 0 }

// IndicatesFinished reports whether the protocol is done: a PushResponse
// with no subgraph roots left means the receiver has everything.
func (r PushResponse) IndicatesFinished() bool { return len(r.SubgraphRoots) == 0 }

// wireMessage is the DAG-CBOR-level shape shared by both message types:
// CIDs as raw bytes under short keys, matching the "rs"/"sr", "bk", "bb"
// field names from the specification's wire format.
type wireMessage struct {
	Roots          [][]byte `cbor:"rs"`
	BloomHashCount uint32   `cbor:"bk"`
	BloomBytes     []byte   `cbor:"bb"`
}

type pushWireMessage struct {
	Roots          [][]byte `cbor:"sr"`
	BloomHashCount uint32   `cbor:"bk"`
	BloomBytes     []byte   `cbor:"bb"`
}

// MarshalCBOR implements cbor.Marshaler.
func (r PullRequest) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(wireMessage{
		Roots:          cidsToBytes(r.Resources),
		BloomHashCount: r.BloomHashCount,
		BloomBytes:     r.BloomBytes,
	})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (r *PullRequest) UnmarshalCBOR(data []byte) error {
	var w wireMessage
	if err := cbor.Unmarshal(data, &w); err != nil {
		return errs.NewParsingError(err)
	}
	cids, err := bytesToCids(w.Roots)
	if err != nil {
		return err
	}
	r.Resources = cids
	r.BloomHashCount = w.BloomHashCount
	r.BloomBytes = w.BloomBytes
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (r PushResponse) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(pushWireMessage{
		Roots:          cidsToBytes(r.SubgraphRoots),
		BloomHashCount: r.BloomHashCount,
		BloomBytes:     r.BloomBytes,
	})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (r *PushResponse) UnmarshalCBOR(data []byte) error {
	var w pushWireMessage
	if err := cbor.Unmarshal(data, &w); err != nil {
		return errs.NewParsingError(err)
	}
	cids, err := bytesToCids(w.Roots)
	if err != nil {
		return err
	}
	r.SubgraphRoots = cids
	r.BloomHashCount = w.BloomHashCount
	r.BloomBytes = w.BloomBytes
	return nil
}

func cidsToBytes(cids []cid.Cid) [][]byte {
	out := make([][]byte, len(cids))
	for i, c := range cids {
		out[i] = c.Bytes()
	}
	return out
}

func bytesToCids(bs [][]byte) ([]cid.Cid, error) {
	out := make([]cid.Cid, len(bs))
	for i, b := range bs {
		c, err := cid.Cast(b)
		if err != nil {
			return nil, errs.NewParsingError(err)
		}
		out[i] = c
	}
	return out, nil
}

// jsonMessage mirrors wireMessage for human-readable JSON, with CIDs as
// strings and the bloom as base64url-nopad text (serde_bloom_bytes.rs).
type jsonMessage struct {
	Resources      []string `json:"rs"`
	BloomHashCount uint32   `json:"bk"`
	BloomBytes     string   `json:"bb"`
}

type pushJSONMessage struct {
	SubgraphRoots  []string `json:"sr"`
	BloomHashCount uint32   `json:"bk"`
	BloomBytes     string   `json:"bb"`
}

var bloomEncoding = base64.URLEncoding.WithPadding(base64.NoPadding)

// MarshalJSON implements json.Marshaler.
func (r PullRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonMessage{
		Resources:      cidsToStrings(r.Resources),
		BloomHashCount: r.BloomHashCount,
		BloomBytes:     bloomEncoding.EncodeToString(r.BloomBytes),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *PullRequest) UnmarshalJSON(data []byte) error {
	var m jsonMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return errs.NewParsingError(err)
	}
	cids, err := stringsToCids(m.Resources)
	if err != nil {
		return err
	}
	bloomBytes, err := bloomEncoding.DecodeString(m.BloomBytes)
	if err != nil {
		return errs.NewParsingError(err)
	}
	r.Resources = cids
	r.BloomHashCount = m.BloomHashCount
	r.BloomBytes = bloomBytes
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r PushResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(pushJSONMessage{
		SubgraphRoots:  cidsToStrings(r.SubgraphRoots),
		BloomHashCount: r.BloomHashCount,
		BloomBytes:     bloomEncoding.EncodeToString(r.BloomBytes),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *PushResponse) UnmarshalJSON(data []byte) error {
	var m pushJSONMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return errs.NewParsingError(err)
	}
	cids, err := stringsToCids(m.SubgraphRoots)
	if err != nil {
		return err
	}
	bloomBytes, err := bloomEncoding.DecodeString(m.BloomBytes)
	if err != nil {
		return errs.NewParsingError(err)
	}
	r.SubgraphRoots = cids
	r.BloomHashCount = m.BloomHashCount
	r.BloomBytes = bloomBytes
	return nil
}

func cidsToStrings(cids []cid.Cid) []string {
	out := make([]string, len(cids))
	for i, c := range cids {
		out[i] = c.String()
	}
	return out
}

func stringsToCids(ss []string) ([]cid.Cid, error) {
	out := make([]cid.Cid, len(ss))
	for i, s := range ss {
		c, err := cid.Decode(s)
		if err != nil {
			return nil, errs.NewParsingError(err)
		}
		out[i] = c
	}
	return out, nil
}
