package compiler

// Compile runs the full front end over src and returns the generated C
// translation unit. Each stage is fail-fast; the first error aborts the
// pipeline.
func Compile(src string) (string, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return "", err
	}

	program, err := Parse(tokens)
	if err != nil {
		return "", err
	}

	return Generate(program)
}
