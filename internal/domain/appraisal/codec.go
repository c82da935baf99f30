package appraisal

import (
	"encoding/json"
	"fmt"

	"appraisal/internal/domain/scoring"
)

// Documents is the column form of an appraisal's JSON fields. Scores and
// Attachment are nil when unset.
type Documents struct {
	Content    []byte
	Scores     []byte
	Attachment []byte
}

func EncodeDocuments(a Appraisal) (Documents, error) {
	var out Documents
	var err error
	if out.Content, err = json.Marshal(a.Content.normalized()); err != nil {
		return Documents{}, fmt.Errorf("encode content: %w", err)
	}
	if a.Scores != nil {
		if out.Scores, err = json.Marshal(a.Scores); err != nil {
			return Documents{}, fmt.Errorf("encode scores: %w", err)
		}
	}
	if a.Attachment != nil {
		if out.Attachment, err = EncodeAttachment(a.Attachment); err != nil {
			return Documents{}, err
		}
	}
	return out, nil
}

func EncodeAttachment(attachment *Attachment) ([]byte, error) {
	if attachment == nil {
		return nil, nil
	}
	raw, err := json.Marshal(attachment)
	if err != nil {
		return nil, fmt.Errorf("encode attachment: %w", err)
	}
	return raw, nil
}

// DecodeDocuments fills the JSON-backed fields of a. Empty or null columns
// leave the field unset.
func DecodeDocuments(a *Appraisal, docs Documents) error {
	if len(docs.Content) > 0 {
		if err := json.Unmarshal(docs.Content, &a.Content); err != nil {
			return fmt.Errorf("decode content: %w", err)
		}
	}
	a.Content = a.Content.normalized()
	if isJSONValue(docs.Scores) {
		var scores scoring.Result
		if err := json.Unmarshal(docs.Scores, &scores); err != nil {
			return fmt.Errorf("decode scores: %w", err)
		}
		a.Scores = &scores
	}
	if isJSONValue(docs.Attachment) {
		var attachment Attachment
		if err := json.Unmarshal(docs.Attachment, &attachment); err != nil {
			return fmt.Errorf("decode attachment: %w", err)
		}
		a.Attachment = &attachment
	}
	return nil
}

func isJSONValue(raw []byte) bool {
	return len(raw) > 0 && string(raw) != "null"
}
