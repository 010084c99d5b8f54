package autodiff

import (
	"github.com/born-ml/symgraph/internal/graph"
)

// inbox collects the messages addressed to each node during a reverse pass.
//
// Usage:
//
//	box := newInbox()
//	box.post(id, msg)
//	msgs := box.take(id) // removes and returns every message for id
type inbox struct {
	msgs map[graph.ID][]*graph.Node
	sent int
}

func newInbox() *inbox {
	return &inbox{msgs: make(map[graph.ID][]*graph.Node)}
}

// post appends msg to the inbox of id.
func (b *inbox) post(id graph.ID, msg *graph.Node) {
	b.msgs[id] = append(b.msgs[id], msg)
	b.sent++
}

// take removes and returns the messages of id.
func (b *inbox) take(id graph.ID) []*graph.Node {
	msgs := b.msgs[id]
	delete(b.msgs, id)
	return msgs
}

// pending returns the number of nodes with undelivered messages.
func (b *inbox) pending() int {
	return len(b.msgs)
}
