// Package directory holds the read-only registry of people that complaints
// are routed between. It is populated once, from a YAML file or the embedded
// demo fixture, and never mutated afterwards.
package directory

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures/demo.yaml
var demoFixture []byte

var (
	ErrDuplicateID        = errors.New("directory: duplicate person id")
	ErrDuplicateEmail     = errors.New("directory: duplicate email")
	ErrMissingAffiliation = errors.New("directory: missing class or department")
	ErrPrincipalCount     = errors.New("directory: exactly one principal is required")
)

type Directory struct {
	people  []Person
	byID    map[string]int
	byEmail map[string]int
}

type fileFormat struct {
	People []personRecord `yaml:"people"`
}

type personRecord struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	Password   string `yaml:"password"`
	Role       string `yaml:"role"`
	Class      string `yaml:"class"`
	Department string `yaml:"department"`
}

// Options controls credential hashing during load.
type Options struct {
	BcryptCost int
}

func (o Options) cost() int {
	if o.BcryptCost < bcrypt.MinCost || o.BcryptCost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return o.BcryptCost
}

// LoadDemo returns the embedded demo directory.
func LoadDemo(opts Options) (*Directory, error) {
	return Parse(demoFixture, opts)
}

func LoadFile(path string, opts Options) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", path, err)
	}
	d, err := Parse(raw, opts)
	if err != nil {
		return nil, fmt.Errorf("directory %s: %w", path, err)
	}
	return d, nil
}

func Parse(raw []byte, opts Options) (*Directory, error) {
	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("unmarshal directory: %w", err)
	}
	people := make([]Person, 0, len(f.People))
	for i, rec := range f.People {
		role, err := ParseRole(rec.Role)
		if err != nil {
			return nil, fmt.Errorf("person #%d (%s): %w", i+1, rec.ID, err)
		}
		p := Person{
			ID:         strings.TrimSpace(rec.ID),
			Name:       strings.TrimSpace(rec.Name),
			Email:      strings.ToLower(strings.TrimSpace(rec.Email)),
			Role:       role,
			Class:      strings.TrimSpace(rec.Class),
			Department: strings.TrimSpace(rec.Department),
		}
		if rec.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(rec.Password), opts.cost())
			if err != nil {
				return nil, fmt.Errorf("hash credential for %s: %w", p.ID, err)
			}
			p.credentialHash = hash
		}
		people = append(people, p)
	}
	return New(people)
}

// New validates people and builds the lookup indexes.
func New(people []Person) (*Directory, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	d := &Directory{
		people:  make([]Person, 0, len(people)),
		byID:    make(map[string]int, len(people)),
		byEmail: make(map[string]int, len(people)),
	}
	principals := 0
	for _, p := range people {
		if err := v.Struct(p); err != nil {
			return nil, fmt.Errorf("person %q: %w", p.ID, err)
		}
		if _, ok := d.byID[p.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
		}
		email := strings.ToLower(p.Email)
		if _, ok := d.byEmail[email]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEmail, p.Email)
		}
		switch p.Role {
		case RoleStudent, RoleTeacher:
			if p.Class == "" {
				return nil, fmt.Errorf("%w: %s (%s) needs a class", ErrMissingAffiliation, p.ID, p.Role)
			}
		case RoleDepartmentHead:
			if p.Department == "" {
				return nil, fmt.Errorf("%w: %s (%s) needs a department", ErrMissingAffiliation, p.ID, p.Role)
			}
		case RolePrincipal:
			principals++
		}
		d.byID[p.ID] = len(d.people)
		d.byEmail[email] = len(d.people)
		d.people = append(d.people, p)
	}
	if principals != 1 {
		return nil, fmt.Errorf("%w (found %d)", ErrPrincipalCount, principals)
	}
	return d, nil
}

func (d *Directory) Lookup(id string) (Person, bool) {
	if d == nil {
		return Person{}, false
	}
	i, ok := d.byID[strings.TrimSpace(id)]
	if !ok {
		return Person{}, false
	}
	return d.people[i], true
}

func (d *Directory) LookupEmail(email string) (Person, bool) {
	if d == nil {
		return Person{}, false
	}
	i, ok := d.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return Person{}, false
	}
	return d.people[i], true
}

// People returns a copy in seed order.
func (d *Directory) People() []Person {
	if d == nil {
		return nil
	}
	out := make([]Person, len(d.people))
	copy(out, d.people)
	return out
}

// First returns the first person, in seed order, matching fn.
func (d *Directory) First(fn func(Person) bool) (Person, bool) {
	if d == nil {
		return Person{}, false
	}
	for _, p := range d.people {
		if fn(p) {
			return p, true
		}
	}
	return Person{}, false
}

func (d *Directory) TeacherForClass(class string) (Person, bool) {
	if strings.TrimSpace(class) == "" {
		return Person{}, false
	}
	return d.First(func(p Person) bool { return p.Role == RoleTeacher && p.Class == class })
}

func (d *Directory) HeadForDepartment(dept string) (Person, bool) {
	if strings.TrimSpace(dept) == "" {
		return Person{}, false
	}
	return d.First(func(p Person) bool { return p.Role == RoleDepartmentHead && p.Department == dept })
}

func (d *Directory) Principal() (Person, bool) {
	return d.First(func(p Person) bool { return p.Role == RolePrincipal })
}
