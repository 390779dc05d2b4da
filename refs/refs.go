// Package refs extracts the outbound links (references) from a single
// block, dispatching on the block's CID codec. Raw blocks have no links;
// DAG-CBOR and DAG-PB blocks are parsed to recover their child CIDs.
package refs

import (
	"bytes"
	"errors"

	cid "github.com/ipfs/go-cid"
	dagpb "github.com/ipld/go-codec-dagpb"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/datamodel"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"

	carerrs "github.com/fission-codes/go-car-mirror/errs"
)

var errInvalidPBNode = errors.New("decoded value is not a dag-pb node")

// References returns the CIDs directly linked from the block identified by
// c, whose raw bytes are data. Codecs other than raw/DAG-CBOR/DAG-PB yield
// *carerrs.UnsupportedCodec.
func References(c cid.Cid, data []byte) ([]cid.Cid, error) {
	switch c.Prefix().Codec {
	case cid.Raw:
		return nil, nil
	case cid.DagCBOR:
		return dagCBORReferences(data)
	case cid.DagProtobuf:
		return dagPBReferences(data)
	default:
		return nil, &carerrs.UnsupportedCodec{Cid: c}
	}
}

func dagCBORReferences(data []byte) ([]cid.Cid, error) {
	nb := basicnode.Prototype.Any.NewBuilder()
	if err := dagcbor.Decode(nb, bytes.NewReader(data)); err != nil {
		return nil, carerrs.NewParsingError(err)
	}
	var out []cid.Cid
	collectLinks(nb.Build(), &out)
	return out, nil
}

// collectLinks walks an ipld-prime node tree, collecting every Link it
// finds. DAG-CBOR has no schema here, so the node shape is whatever the
// block happened to encode: maps, lists, and scalars nested arbitrarily.
func collectLinks(n datamodel.Node, out *[]cid.Cid) {
	switch n.Kind() {
	case datamodel.Kind_Link:
		lnk, err := n.AsLink()
		if err != nil {
			return
		}
		if cl, ok := lnk.(cidlink.Link); ok {
			*out = append(*out, cl.Cid)
		}
	case datamodel.Kind_Map:
		for it := n.MapIterator(); !it.Done(); {
			_, v, err := it.Next()
			if err != nil {
				return
			}
			collectLinks(v, out)
		}
	case datamodel.Kind_List:
		for it := n.ListIterator(); !it.Done(); {
			_, v, err := it.Next()
			if err != nil {
				return
			}
			collectLinks(v, out)
		}
	}
}

func dagPBReferences(data []byte) ([]cid.Cid, error) {
	builder := dagpb.Type.PBNode.NewBuilder()
	if err := dagpb.DecodeBytes(builder, data); err != nil {
		return nil, carerrs.NewParsingError(err)
	}
	pbn, ok := builder.Build().(dagpb.PBNode)
	if !ok {
		return nil, carerrs.NewParsingError(errInvalidPBNode)
	}
	var out []cid.Cid
	li := pbn.Links.ListIterator()
	for !li.Done() {
		_, l, err := li.Next()
		if err != nil {
			return nil, carerrs.NewParsingError(err)
		}
		pbl, ok := l.(dagpb.PBLink)
		if !ok {
			continue
		}
		if cl, ok := pbl.Hash.Link().(cidlink.Link); ok {
			out = append(out, cl.Cid)
		}
	}
	return out, nil
}
