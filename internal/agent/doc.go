// Package agent implements the reviewers that make up a code review run.
//
// Each reviewer is an Agent configured by a Role: a prompt, generation
// parameters for the llm.Generator, optional pre-processing (the performance
// role computes loop metrics from the code) and the wording used when the
// provider fails. There is one Agent type; roles differ only in data.
//
// Agents never return errors. Provider failures, blocked responses and
// output that does not satisfy the response Contract all become
// domain.Finding values with severity ERROR, so a pipeline of agents always
// yields one finding per role.
//
// Example:
//
//	gen, err := llm.New(llm.Settings{Provider: "gemini", APIKey: key})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	a := agent.New(agent.SecurityRole(), gen, terminal.NewLogger())
//	finding := a.Review(ctx, code, domain.Results{})
package agent
