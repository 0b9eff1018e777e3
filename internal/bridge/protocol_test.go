package bridge

import "testing"

func TestValidateRequestFrameAccepts(t *testing.T) {
	frames := []string{
		`{"id":"1","op":"add","pageKey":"https://example.com","text":"note"}`,
		`{"id":"2","op":"remove","pageKey":"https://example.com","noteId":"abc"}`,
		`{"id":"3","op":"list","pageKey":"https://example.com"}`,
		`{"id":"4","op":"pages"}`,
	}
	for _, frame := range frames {
		if err := ValidateRequestFrame([]byte(frame)); err != nil {
			t.Fatalf("valid frame rejected: %s: %v", frame, err)
		}
	}
}

func TestValidateRequestFrameRejects(t *testing.T) {
	frames := map[string]string{
		"missing id":       `{"op":"list"}`,
		"empty id":         `{"id":"","op":"list"}`,
		"missing op":       `{"id":"1"}`,
		"unknown op":       `{"id":"1","op":"erase"}`,
		"extra property":   `{"id":"1","op":"list","shard":7}`,
		"wrong text type":  `{"id":"1","op":"add","pageKey":"k","text":42}`,
		"not json at all":  `ping`,
		"array not object": `["add"]`,
	}
	for name, frame := range frames {
		if err := ValidateRequestFrame([]byte(frame)); err == nil {
			t.Fatalf("%s: frame accepted but should not be: %s", name, frame)
		}
	}
}
