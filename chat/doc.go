// Package chat sends questions to the site-scoped assistant and streams the
// answer back.
//
// Send returns an iterator of fragments. The user turn is stored before the
// request goes out; the assistant turn is stored once the answer ends with a
// message_end event, together with the upstream conversation id that later
// questions in the same conversation reuse.
//
//	for fragment, err := range client.Send(ctx, "how do I start P-101?", site, conversationID) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(fragment.Delta)
//	}
//
// Stream exposes the event parser on its own for callers that already hold a
// response body.
package chat
