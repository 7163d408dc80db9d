package session

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// DefaultRequestContentTimeout bounds Network.getResponseBody. Encoding issues
// can leave that command hanging forever, so it gets a short timeout of its own.
const DefaultRequestContentTimeout = time.Second

var (
	noNodeFound       = regexp.MustCompile(`No node.*found`)
	nodeNotInDocument = regexp.MustCompile(`Node.*does not belong to the document`)
)

// GetRequestContent returns the response body of the request with requestID.
// A non-positive timeout uses DefaultRequestContentTimeout.
func GetRequestContent(ctx context.Context, s Session, requestID string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultRequestContentTimeout
	}
	ctx = WithProtocolTimeout(ctx, timeout)

	var result struct {
		Body string `json:"body"`
	}
	params := map[string]any{"requestId": requestID}
	if err := Send(ctx, s, "Network.getResponseBody", params, &result); err != nil {
		return "", err
	}
	return result.Body, nil
}

// remoteObject is the subset of Runtime.RemoteObject we read.
type remoteObject struct {
	Object struct {
		ObjectID string `json:"objectId"`
	} `json:"object"`
}

// ResolveNodeIDToObjectID resolves a backend node id to a runtime object id.
// It returns "" without error when the node no longer exists.
func ResolveNodeIDToObjectID(ctx context.Context, s Session, backendNodeID int64) (string, error) {
	var res remoteObject
	err := Send(ctx, s, "DOM.resolveNode", map[string]any{"backendNodeId": backendNodeID}, &res)
	if err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) && (noNodeFound.MatchString(perr.Message) || nodeNotInDocument.MatchString(perr.Message)) {
			return "", nil
		}
		return "", err
	}
	return res.Object.ObjectID, nil
}

// ResolveDevtoolsNodePathToObjectID resolves a devtools node path to a runtime
// object id. DOM.getDocument must have been called since the node was created.
// It returns "" without error when the node cannot be found.
func ResolveDevtoolsNodePathToObjectID(ctx context.Context, s Session, path string) (string, error) {
	var pushed struct {
		NodeID int64 `json:"nodeId"`
	}
	err := Send(ctx, s, "DOM.pushNodeByPathToFrontend", map[string]any{"path": path}, &pushed)
	if err == nil {
		var res remoteObject
		err = Send(ctx, s, "DOM.resolveNode", map[string]any{"nodeId": pushed.NodeID}, &res)
		if err == nil {
			return res.Object.ObjectID, nil
		}
	}

	var perr *ProtocolError
	if errors.As(err, &perr) && noNodeFound.MatchString(perr.Message) {
		return "", nil
	}
	return "", err
}
