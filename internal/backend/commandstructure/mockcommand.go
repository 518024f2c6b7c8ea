package commandstructure

import "image"

// mockCommand is a simple mock implementation of the Command interface for testing
type mockCommand struct {
	name        string
	executeFunc func(*image.Gray) (*image.Gray, error)
}

func (m *mockCommand) Name() string {
	return m.name
}

func (m *mockCommand) Execute(img *image.Gray) (*image.Gray, error) {
	if m.executeFunc != nil {
		return m.executeFunc(img)
	}
	return img, nil
}

// newMockCommand creates a mock command with default behavior (pass-through)
func newMockCommand(name string) *mockCommand {
	return &mockCommand{
		name: name,
		executeFunc: func(img *image.Gray) (*image.Gray, error) {
			return img, nil
		},
	}
}

// newMockCommandWithError creates a mock command that returns an error
func newMockCommandWithError(name string, err error) *mockCommand {
	return &mockCommand{
		name: name,
		executeFunc: func(*image.Gray) (*image.Gray, error) {
			return nil, err
		},
	}
}

// newInvertCommand creates a mock command that inverts every pixel into a new image
func newInvertCommand(name string) *mockCommand {
	return &mockCommand{
		name: name,
		executeFunc: func(img *image.Gray) (*image.Gray, error) {
			out := image.NewGray(img.Bounds())
			for i, v := range img.Pix {
				out.Pix[i] = 255 - v
			}
			return out, nil
		},
	}
}
