package llms

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Part types on the wire
const (
	PartTypeText         = "text"
	PartTypeImageURL     = "image_url"
	PartTypeBinary       = "binary"
	PartTypeToolCall     = "tool_call"
	PartTypeToolResponse = "tool_response"
)

// partJSON is the envelope of a ContentPart in the stored history
type partJSON struct {
	Type         string            `json:"type"`
	Text         string            `json:"text,omitempty"`
	ImageURL     *ImageURLContent  `json:"image_url,omitempty"`
	Binary       *BinaryContent    `json:"binary,omitempty"`
	ToolCall     *ToolCall         `json:"tool_call,omitempty"`
	ToolResponse *ToolCallResponse `json:"tool_response,omitempty"`
}

type messageJSON struct {
	Role  Role       `json:"role"`
	Parts []partJSON `json:"parts"`
}

// MarshalJSON implements json.Marshaler for Message
func (m Message) MarshalJSON() ([]byte, error) {
	res := messageJSON{
		Role:  m.Role,
		Parts: make([]partJSON, 0, len(m.Parts)),
	}
	for _, p := range m.Parts {
		switch typ := p.(type) {
		case TextContent:
			res.Parts = append(res.Parts, partJSON{Type: PartTypeText, Text: typ.Text})
		case ImageURLContent:
			res.Parts = append(res.Parts, partJSON{Type: PartTypeImageURL, ImageURL: &typ})
		case BinaryContent:
			res.Parts = append(res.Parts, partJSON{Type: PartTypeBinary, Binary: &typ})
		case ToolCall:
			res.Parts = append(res.Parts, partJSON{Type: PartTypeToolCall, ToolCall: &typ})
		case ToolCallResponse:
			res.Parts = append(res.Parts, partJSON{Type: PartTypeToolResponse, ToolResponse: &typ})
		default:
			return nil, errors.Newf("unsupported content part: %T", p)
		}
	}
	return json.Marshal(res)
}

// UnmarshalJSON implements json.Unmarshaler for Message
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.WithStack(err)
	}

	m.Role = raw.Role
	m.Parts = make([]ContentPart, 0, len(raw.Parts))
	for _, p := range raw.Parts {
		switch p.Type {
		case PartTypeText:
			m.Parts = append(m.Parts, TextContent{Text: p.Text})
		case PartTypeImageURL:
			if p.ImageURL == nil {
				return errors.New("missing image_url in image_url part")
			}
			m.Parts = append(m.Parts, *p.ImageURL)
		case PartTypeBinary:
			if p.Binary == nil {
				return errors.New("missing binary in binary part")
			}
			m.Parts = append(m.Parts, *p.Binary)
		case PartTypeToolCall:
			if p.ToolCall == nil {
				return errors.New("missing tool_call in tool_call part")
			}
			m.Parts = append(m.Parts, *p.ToolCall)
		case PartTypeToolResponse:
			if p.ToolResponse == nil {
				return errors.New("missing tool_response in tool_response part")
			}
			m.Parts = append(m.Parts, *p.ToolResponse)
		default:
			return errors.Newf("unknown content part type: %q", p.Type)
		}
	}
	return nil
}
