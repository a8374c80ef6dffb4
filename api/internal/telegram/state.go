package telegram

import (
	"sync"

	"hs-classifier/api/internal/form"
)

// chatForms keeps one form per chat so each chat has its own in-flight gate.
type chatForms struct {
	api   form.Classifier
	forms sync.Map // chatID -> *form.Form
}

func (c *chatForms) get(chatID int64) *form.Form {
	if v, ok := c.forms.Load(chatID); ok {
		return v.(*form.Form)
	}
	v, _ := c.forms.LoadOrStore(chatID, form.New(c.api))
	return v.(*form.Form)
}

// resetIdle forgets the chat's form unless a classification is in flight.
func (c *chatForms) resetIdle(chatID int64) {
	if v, ok := c.forms.Load(chatID); ok && !v.(*form.Form).Loading() {
		c.forms.CompareAndDelete(chatID, v)
	}
}
