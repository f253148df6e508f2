package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/oriadata/orgmaster/internal/data/repos"
	"github.com/oriadata/orgmaster/internal/domain"
	domainagg "github.com/oriadata/orgmaster/internal/domain/aggregates"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
)

// RegistryService owns the controlled vocabularies: data sources, foreign-id
// schemes, relationship types, and the postcode reference table.
type RegistryService interface {
	CreateSource(ctx context.Context, name, description string) (*domain.Source, error)
	GetSourceByName(ctx context.Context, name string) (*domain.Source, error)
	ListSources(ctx context.Context) ([]*domain.Source, error)

	CreateScheme(ctx context.Context, name, description string) (*domain.IDScheme, error)
	GetSchemeByName(ctx context.Context, name string) (*domain.IDScheme, error)
	ListSchemes(ctx context.Context) ([]*domain.IDScheme, error)

	CreateRelationshipType(ctx context.Context, rt *domain.RelationshipType) (*domain.RelationshipType, error)
	GetRelationshipTypeByName(ctx context.Context, name string) (*domain.RelationshipType, error)
	ListRelationshipTypes(ctx context.Context) ([]*domain.RelationshipType, error)

	CreatePostcode(ctx context.Context, pc *domain.Postcode) (*domain.Postcode, error)
	GetPostcodeByCode(ctx context.Context, code, country string) (*domain.Postcode, error)

	// SeedFromFile loads sources, schemes, and relationship types from a
	// YAML seed file, skipping entries that already exist by name.
	SeedFromFile(ctx context.Context, path string) error
}

type registryService struct {
	db        *gorm.DB
	log       *logger.Logger
	sources   repos.SourceRepo
	schemes   repos.SchemeRepo
	relTypes  repos.RelationshipTypeRepo
	postcodes repos.PostcodeRepo
}

func NewRegistryService(
	db *gorm.DB,
	baseLog *logger.Logger,
	sources repos.SourceRepo,
	schemes repos.SchemeRepo,
	relTypes repos.RelationshipTypeRepo,
	postcodes repos.PostcodeRepo,
) RegistryService {
	return &registryService{
		db:        db,
		log:       baseLog.With("service", "RegistryService"),
		sources:   sources,
		schemes:   schemes,
		relTypes:  relTypes,
		postcodes: postcodes,
	}
}

func (s *registryService) dbc(ctx context.Context) dbctx.Context {
	return dbctx.Context{Ctx: ctx}
}

func (s *registryService) CreateSource(ctx context.Context, name, description string) (*domain.Source, error) {
	const op = "Registry.CreateSource"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing source name", nil)
	}
	existing, err := s.sources.GetByName(s.dbc(ctx), name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domainagg.NewError(domainagg.CodeConflict, op, fmt.Sprintf("source already registered: %s", name), nil)
	}
	rows, err := s.sources.Create(s.dbc(ctx), []*domain.Source{{Name: name, Description: description}})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

func (s *registryService) GetSourceByName(ctx context.Context, name string) (*domain.Source, error) {
	return s.sources.GetByName(s.dbc(ctx), strings.TrimSpace(name))
}

func (s *registryService) ListSources(ctx context.Context) ([]*domain.Source, error) {
	return s.sources.List(s.dbc(ctx))
}

func (s *registryService) CreateScheme(ctx context.Context, name, description string) (*domain.IDScheme, error) {
	const op = "Registry.CreateScheme"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing scheme name", nil)
	}
	existing, err := s.schemes.GetByName(s.dbc(ctx), name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domainagg.NewError(domainagg.CodeConflict, op, fmt.Sprintf("scheme already registered: %s", name), nil)
	}
	rows, err := s.schemes.Create(s.dbc(ctx), []*domain.IDScheme{{Name: name, Description: description}})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

func (s *registryService) GetSchemeByName(ctx context.Context, name string) (*domain.IDScheme, error) {
	return s.schemes.GetByName(s.dbc(ctx), strings.TrimSpace(name))
}

func (s *registryService) ListSchemes(ctx context.Context) ([]*domain.IDScheme, error) {
	return s.schemes.List(s.dbc(ctx))
}

func (s *registryService) CreateRelationshipType(ctx context.Context, rt *domain.RelationshipType) (*domain.RelationshipType, error) {
	const op = "Registry.CreateRelationshipType"
	if rt == nil || strings.TrimSpace(rt.Name) == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing relationship type name", nil)
	}
	if strings.TrimSpace(rt.ForwardLabel) == "" || strings.TrimSpace(rt.InverseLabel) == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "relationship type needs forward and inverse labels", nil)
	}
	existing, err := s.relTypes.GetByName(s.dbc(ctx), rt.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domainagg.NewError(domainagg.CodeConflict, op, fmt.Sprintf("relationship type already registered: %s", rt.Name), nil)
	}
	rows, err := s.relTypes.Create(s.dbc(ctx), []*domain.RelationshipType{rt})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

func (s *registryService) GetRelationshipTypeByName(ctx context.Context, name string) (*domain.RelationshipType, error) {
	return s.relTypes.GetByName(s.dbc(ctx), strings.TrimSpace(name))
}

func (s *registryService) ListRelationshipTypes(ctx context.Context) ([]*domain.RelationshipType, error) {
	return s.relTypes.List(s.dbc(ctx))
}

func (s *registryService) CreatePostcode(ctx context.Context, pc *domain.Postcode) (*domain.Postcode, error) {
	const op = "Registry.CreatePostcode"
	if pc == nil || strings.TrimSpace(pc.Code) == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing postcode", nil)
	}
	if pc.Country == "" {
		pc.Country = "US"
	}
	existing, err := s.postcodes.GetByCode(s.dbc(ctx), pc.Code, pc.Country)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	rows, err := s.postcodes.Create(s.dbc(ctx), []*domain.Postcode{pc})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

func (s *registryService) GetPostcodeByCode(ctx context.Context, code, country string) (*domain.Postcode, error) {
	return s.postcodes.GetByCode(s.dbc(ctx), strings.TrimSpace(code), strings.TrimSpace(country))
}

type seedFile struct {
	Sources []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"sources"`
	Schemes []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"schemes"`
	RelationshipTypes []struct {
		Name         string `yaml:"name"`
		ForwardLabel string `yaml:"forward_label"`
		InverseLabel string `yaml:"inverse_label"`
		Reflexive    bool   `yaml:"reflexive"`
		Comment      string `yaml:"comment"`
	} `yaml:"relationship_types"`
}

func (s *registryService) SeedFromFile(ctx context.Context, path string) error {
	const op = "Registry.SeedFromFile"
	raw, err := os.ReadFile(path)
	if err != nil {
		return domainagg.Wrap(domainagg.CodeValidation, op, err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return domainagg.Wrap(domainagg.CodeValidation, op, err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		for _, src := range seed.Sources {
			existing, err := s.sources.GetByName(dbc, src.Name)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			if _, err := s.sources.Create(dbc, []*domain.Source{{Name: src.Name, Description: src.Description}}); err != nil {
				return err
			}
		}
		for _, sch := range seed.Schemes {
			existing, err := s.schemes.GetByName(dbc, sch.Name)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			if _, err := s.schemes.Create(dbc, []*domain.IDScheme{{Name: sch.Name, Description: sch.Description}}); err != nil {
				return err
			}
		}
		for _, rt := range seed.RelationshipTypes {
			existing, err := s.relTypes.GetByName(dbc, rt.Name)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			row := &domain.RelationshipType{
				Name:         rt.Name,
				ForwardLabel: rt.ForwardLabel,
				InverseLabel: rt.InverseLabel,
				Reflexive:    rt.Reflexive,
				Comment:      rt.Comment,
			}
			if _, err := s.relTypes.Create(dbc, []*domain.RelationshipType{row}); err != nil {
				return err
			}
		}
		s.log.Info("registry seed loaded",
			"sources", len(seed.Sources),
			"schemes", len(seed.Schemes),
			"relationship_types", len(seed.RelationshipTypes))
		return nil
	})
}
