package figma

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// Node is one visible design element discovered while streaming the
// file-nodes document. Hash digests the node's entire JSON subtree, so a
// remote edit anywhere below the node changes it.
type Node struct {
	ID             string
	Name           string
	Type           string
	Visible        bool
	HasRasterFills bool
	Tag            string
	Hash           uint64
}

// IsComponent reports whether the node is an exportable component.
func (n Node) IsComponent() bool { return n.Type == "COMPONENT" }

// WalkNodes parses the file-nodes response from r incrementally, emitting
// every object that carries both "id" and "name", depth-first; an object
// is emitted when it closes, so a node follows its descendants. Emission
// happens while the rest of the document is still
// arriving, which is what lets downloads start before indexing finishes.
//
// tags maps container node ids to container tags; nodes found beneath
// "nodes.<container-id>" carry the matching tag.
func WalkNodes(r io.Reader, tags map[string]string, emit func(Node)) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	w := &nodeWalker{dec: dec, tags: tags, emit: emit}

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("empty document")
		}
		return fmt.Errorf("node stream: %w", err)
	}
	if err := w.walkValue(tok, nil); err != nil {
		return fmt.Errorf("node stream: %w", err)
	}
	return nil
}

type nodeWalker struct {
	dec  *json.Decoder
	tags map[string]string
	emit func(Node)
	keys []string // enclosing object keys, root first
}

// frame accumulates one candidate node while its object is being parsed.
type frame struct {
	id, name, typ string
	visible       bool
	hasVisible    bool
	hasRaster     bool
	inFills       bool
	h             *blake3.Hasher
}

func newFrame() *frame {
	return &frame{h: blake3.New()}
}

func (f *frame) digest() uint64 {
	var sum [8]byte
	d := f.h.Digest()
	_, _ = d.Read(sum[:])
	return binary.BigEndian.Uint64(sum[:])
}

func (w *nodeWalker) walkValue(tok json.Token, parent *frame) error {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return w.walkObject(parent)
		case '[':
			return w.walkArray(parent)
		default:
			return fmt.Errorf("unexpected delimiter %v", v)
		}
	default:
		hashScalar(parent, tok)
		return nil
	}
}

func (w *nodeWalker) walkObject(parent *frame) error {
	f := newFrame()
	if parent != nil {
		f.inFills = parent.inFills
	}
	hashByte(f, '{')

	for w.dec.More() {
		keyTok, err := w.dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("object key is not a string: %v", keyTok)
		}
		hashKey(f, key)
		w.keys = append(w.keys, key)

		valTok, err := w.dec.Token()
		if err != nil {
			return err
		}

		switch key {
		case "id":
			if s, ok := valTok.(string); ok {
				f.id = s
				hashScalar(f, valTok)
			} else if err := w.walkValue(valTok, f); err != nil {
				return err
			}
		case "name":
			if s, ok := valTok.(string); ok {
				f.name = s
				hashScalar(f, valTok)
			} else if err := w.walkValue(valTok, f); err != nil {
				return err
			}
		case "type":
			if s, ok := valTok.(string); ok {
				f.typ = s
				hashScalar(f, valTok)
			} else if err := w.walkValue(valTok, f); err != nil {
				return err
			}
		case "visible":
			if b, ok := valTok.(bool); ok {
				f.visible = b
				f.hasVisible = true
				hashScalar(f, valTok)
			} else if err := w.walkValue(valTok, f); err != nil {
				return err
			}
		case "fills":
			f.inFills = true
			if err := w.walkValue(valTok, f); err != nil {
				return err
			}
			f.inFills = false
		default:
			if err := w.walkValue(valTok, f); err != nil {
				return err
			}
		}
		w.keys = w.keys[:len(w.keys)-1]
	}

	end, err := w.dec.Token() // consume '}'
	if err != nil {
		return err
	}
	if d, ok := end.(json.Delim); !ok || d != '}' {
		return fmt.Errorf("expected end of object, got %v", end)
	}
	hashByte(f, '}')

	// Inside a fills array, objects describe paints; an IMAGE paint marks
	// the owning node as rasterized.
	if f.inFills && f.typ == "IMAGE" && parent != nil {
		parent.hasRaster = true
	}

	if parent != nil {
		var sum [8]byte
		binary.BigEndian.PutUint64(sum[:], f.digest())
		_, _ = parent.h.Write(sum[:])
	}

	if f.id != "" && f.name != "" {
		visible := true
		if f.hasVisible {
			visible = f.visible
		}
		w.emit(Node{
			ID:             f.id,
			Name:           f.name,
			Type:           f.typ,
			Visible:        visible,
			HasRasterFills: f.hasRaster,
			Tag:            w.currentTag(),
			Hash:           f.digest(),
		})
	}
	return nil
}

func (w *nodeWalker) walkArray(parent *frame) error {
	hashByte(parent, '[')
	for w.dec.More() {
		tok, err := w.dec.Token()
		if err != nil {
			return err
		}
		if err := w.walkValue(tok, parent); err != nil {
			return err
		}
	}
	end, err := w.dec.Token() // consume ']'
	if err != nil {
		return err
	}
	if d, ok := end.(json.Delim); !ok || d != ']' {
		return fmt.Errorf("expected end of array, got %v", end)
	}
	hashByte(parent, ']')
	return nil
}

// currentTag resolves the container tag from the enclosing key path:
// the response shape is {"nodes": {"<container-id>": {"document": ...}}}.
func (w *nodeWalker) currentTag() string {
	if len(w.tags) == 0 || len(w.keys) < 2 || w.keys[0] != "nodes" {
		return ""
	}
	return w.tags[w.keys[1]]
}

func hashByte(f *frame, b byte) {
	if f != nil {
		_, _ = f.h.Write([]byte{b})
	}
}

func hashKey(f *frame, key string) {
	_, _ = f.h.Write([]byte("key:"))
	_, _ = f.h.Write([]byte(key))
}

func hashScalar(f *frame, tok json.Token) {
	if f == nil {
		return
	}
	switch v := tok.(type) {
	case string:
		_, _ = f.h.Write([]byte(v))
	case json.Number:
		_, _ = f.h.Write([]byte(v.String()))
	case bool:
		if v {
			_, _ = f.h.Write([]byte{1})
		} else {
			_, _ = f.h.Write([]byte{0})
		}
	case nil:
		_, _ = f.h.Write([]byte("null"))
	}
}
