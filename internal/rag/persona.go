package rag

import (
	"fmt"
	"strings"

	"github.com/askpdf/server/internal/apperr"
)

// Persona selects the answer style.
type Persona int

const (
	PersonaGeneral Persona = iota
	PersonaSummary
	PersonaEssay
	PersonaTechnical
)

var personas = []Persona{PersonaGeneral, PersonaSummary, PersonaEssay, PersonaTechnical}

// UnknownPersonaError is returned for a persona name outside the enumeration.
type UnknownPersonaError struct {
	Name string
}

func (e *UnknownPersonaError) Error() string {
	return "Unknown prompt type"
}

func (e *UnknownPersonaError) Unwrap() error {
	return apperr.ErrValidation
}

// ParsePersona maps a display name such as "Technical" to its Persona.
func ParsePersona(name string) (Persona, error) {
	for _, p := range personas {
		if p.Name() == name {
			return p, nil
		}
	}
	return 0, &UnknownPersonaError{Name: name}
}

// Personas lists every persona in display order.
func Personas() []Persona {
	return append([]Persona(nil), personas...)
}

// Templates maps each persona name to its prompt template.
func Templates() map[string]string {
	out := make(map[string]string, len(personas))
	for _, p := range personas {
		out[p.Name()] = p.Template()
	}
	return out
}

// Name returns the display name used by clients.
func (p Persona) Name() string {
	switch p {
	case PersonaGeneral:
		return "General AI Assistant"
	case PersonaSummary:
		return "Summary"
	case PersonaEssay:
		return "Essays Expert"
	case PersonaTechnical:
		return "Technical"
	}
	return fmt.Sprintf("Persona(%d)", int(p))
}

func (p Persona) String() string { return p.Name() }

// Template returns the prompt template. It contains the {input} and {context}
// placeholders filled by Format.
func (p Persona) Template() string {
	switch p {
	case PersonaGeneral:
		return generalTemplate
	case PersonaSummary:
		return summaryTemplate
	case PersonaEssay:
		return essayTemplate
	case PersonaTechnical:
		return technicalTemplate
	}
	return generalTemplate
}

// Format fills the template with the question and the retrieved context.
func (p Persona) Format(input, context string) string {
	return strings.NewReplacer("{input}", input, "{context}", context).Replace(p.Template())
}

const generalTemplate = `<s>[INST] You are an AI assistant that answers questions about documents the user uploaded as PDFs. Give accurate, well reasoned answers grounded in the context below.

**Instructions:**
- Read the context and the question carefully.
- Pull the relevant facts out of the documents and combine them into one complete answer.
- Explain your reasoning and use concrete examples from the documents.
- Use Markdown headings and lists where they help readability.
- Say clearly when the context does not contain what the question needs.

**Answer layout:**
# Overview
# Analysis
# Details from the documents
# Conclusion

**Your Response:**
[/INST]</s> {input}
Context: {context}`

const summaryTemplate = `<s>[INST] You are an AI assistant that summarizes technical documents. Write a short, well organized Markdown summary of the context below that answers the user's request.

**Instructions:**
- Identify the main points, arguments and important details.
- Use # for sections, ## for subsections and **bold** for key terms.
- Start with a brief overview, list the key findings, and close with a one paragraph conclusion.
- Avoid jargon that the documents do not use.

**Your Response:**
[/INST]</s> {input}
Context: {context}`

const essayTemplate = `<s>[INST] Write a detailed essay on the topic the user gives, drawing on the context taken from the PDFs they uploaded. Open with an introduction that states why the topic matters. Develop the body with analysis, examples and explanation grounded in the documents. Close with a reflective conclusion about where the topic is heading.

Write continuous prose with smooth transitions. Do not use bullet points or lists.

**Your Response:**
[/INST]</s> Context derived from PDFs uploaded by the user: {context} {input}`

const technicalTemplate = `<s>[INST] You are an AI assistant specialised in technical documentation. Answer the user's request with a detailed Markdown response built from the context below.

**Instructions:**
- Use #, ## and ### headings to separate sections.
- Emphasise key terms with **bold** and use *italics* sparingly.
- Include code blocks, tables and links when the documents contain such material.
- Keep sections in a logical order and point out any information the documents are missing.

**Answer layout:**
## Introduction
## Key Details
## Analysis
## Conclusion

**Your Response:**
[/INST]</s> {input}
Context: {context}`
