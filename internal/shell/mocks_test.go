// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package shell

// mockPrompter answers questions in order and always picks the same item.
type mockPrompter struct {
	answers  []string
	defaults []string
	choice   int
}

func (m *mockPrompter) ask(prompt, defaultValue string) (string, error) {
	m.defaults = append(m.defaults, defaultValue)

	answer := m.answers[0]
	m.answers = m.answers[1:]

	return answer, nil
}

func (m *mockPrompter) choose(prompt string, items []string) (int, error) {
	return m.choice, nil
}
