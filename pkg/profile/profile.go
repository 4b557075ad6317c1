package profile

import (
	"os"
	"sync"

	"github.com/benmeehan/attendance-agent/pkg/file"
)

// StudentProfile holds the student's personal and guardian details.
type StudentProfile struct {
	Name        string `json:"name" yaml:"name"`
	RollNo      string `json:"roll_no" yaml:"roll_no"`
	Email       string `json:"email" yaml:"email"`
	Phone       string `json:"phone" yaml:"phone"`
	ParentName  string `json:"parent_name" yaml:"parent_name"`
	ParentPhone string `json:"parent_phone" yaml:"parent_phone"`
	Department  string `json:"department" yaml:"department"`
	StudentCode string `json:"student_code" yaml:"student_code"`
}

// ProfileStore defines methods for managing the student profile.
type ProfileStore interface {
	Load() error
	Get() StudentProfile
	Update(changes StudentProfile) (StudentProfile, error)
}

// FileProfile keeps the profile in a JSON file.
type FileProfile struct {
	ProfileFile string
	fileOps     file.FileOperations

	mu      sync.RWMutex
	profile StudentProfile
}

// NewFileProfile initializes a new FileProfile. seed is used until a profile file exists.
func NewFileProfile(filePath string, fileOps file.FileOperations, seed StudentProfile) *FileProfile {
	return &FileProfile{
		ProfileFile: filePath,
		fileOps:     fileOps,
		profile:     seed,
	}
}

// Load reads the profile from the file. A missing file keeps the seed profile.
func (p *FileProfile) Load() error {
	var loaded StudentProfile
	if err := p.fileOps.ReadJsonFile(p.ProfileFile, &loaded); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	p.mu.Lock()
	p.profile = loaded
	p.mu.Unlock()
	return nil
}

// Get returns the current profile.
func (p *FileProfile) Get() StudentProfile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.profile
}

// RollNo returns the roll number stamped on attendance records.
func (p *FileProfile) RollNo() string {
	return p.Get().RollNo
}

// Update overwrites every non-empty field of changes except the roll number and student
// code, and writes the result back to the file.
func (p *FileProfile) Update(changes StudentProfile) (StudentProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.profile
	overwrite(&next.Name, changes.Name)
	overwrite(&next.Email, changes.Email)
	overwrite(&next.Phone, changes.Phone)
	overwrite(&next.ParentName, changes.ParentName)
	overwrite(&next.ParentPhone, changes.ParentPhone)
	overwrite(&next.Department, changes.Department)

	if err := p.fileOps.WriteJsonFile(p.ProfileFile, next); err != nil {
		return p.profile, err
	}
	p.profile = next
	return next, nil
}

func overwrite(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
