// Package respond writes JSON responses in the API's error envelope.
package respond

import (
	"encoding/json"
	"net/http"
)

// FieldIssue is one entry of a validation error list.
type FieldIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// BodyIssue returns a value_error issue located at body.field.
func BodyIssue(field, msg string) FieldIssue {
	return FieldIssue{Loc: []string{"body", field}, Msg: msg, Type: "value_error"}
}

type detailBody struct {
	Detail any `json:"detail"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Detail writes {"detail": msg}.
func Detail(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, detailBody{Detail: msg})
}

// Validation writes a 422 with {"detail": [issues...]}.
func Validation(w http.ResponseWriter, issues ...FieldIssue) {
	JSON(w, http.StatusUnprocessableEntity, detailBody{Detail: issues})
}
