// internal/browser/cdpdriver/classifier.go
package cdpdriver

import (
	"errors"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/steady/internal/await"
)

// transientMessages are protocol errors Chrome raises while a document is
// being replaced or a node has just been detached.
var transientMessages = []string{
	"could not find object with given id",
	"cannot find context with specified id",
	"execution context was destroyed",
	"no node with given id found",
	"could not find node with given id",
	"node is detached from document",
	"inspected target navigated or closed",
}

// Classifier recognizes the protocol errors that mean "not ready yet" on a
// live tab. Combine it with await.DefaultClassifier, see NewEngine.
var Classifier await.Classifier = await.ClassifierFunc(isTransient)

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, chromedp.ErrNoResults) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
