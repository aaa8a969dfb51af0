package pack

import (
	"path/filepath"
	"strings"

	"github.com/epack/epack/app"
	"github.com/epack/epack/pattern"
	"github.com/epack/epack/selector"
)

// standardFilters are the ecosystem's default exclusions. They run after
// the configured rules, so they trim even a blanket "**/*" include.
var standardFilters = []string{
	"!**/node_modules/.bin",
	"!**/*.{md,rst,markdown,txt}",
	"!**/{test,tests,__tests__,powered-test,example,examples,readme,README,Readme,changelog,CHANGELOG,Changelog}",
	"!**/test.*",
	"!**/*.test.*",
	"!**/._*",
	"!**/{.editorconfig,.DS_Store,.git,.svn,.hg,CVS,RCS,.gitattributes,.nvmrc,.nycrc,Makefile}",
	"!**/{__pycache__,thumbs.db,.flowconfig,.idea,.vs,.vscode,.nyc_output,.docker-compose.yml}",
	"!**/{.github,.gitlab,.gitlab-ci.yml,appveyor.yml,.travis.yml,circle.yml,.woodpecker.yml}",
	"!**/{package-lock.json,yarn.lock}",
	"!**/.{git,eslint,tslint,prettier,docker,npm,yarn}ignore",
	"!**/.{prettier,eslint,jshint,jsdoc}rc",
	"!**/{.prettierrc,webpack.config,.jshintrc,jsdoc,.eslintrc}{,.json,.js,.yml,yaml}",
	"!**/{yarn,npm}-{debug,error}{,.log,.json}",
	"!**/.{yarn,npm}-metadata,integrity",
	"!**/*.{iml,o,hprof,orig,pyc,pyo,rbc,swp,csproj,sln,xproj,c,h,cc,cpp,hpp,lzz,gyp,ts}",
}

// splitDefs partitions copy definitions into glob strings and file sets.
func splitDefs(defs []app.CopyDef) (globs []string, sets []selector.FileSet) {
	for _, d := range defs {
		if d.Set != nil {
			sets = append(sets, *d.Set)
		} else if d.Glob != "" {
			globs = append(globs, d.Glob)
		}
	}
	return globs, sets
}

// archiveSelection assembles the selector options for the app.asar file
// set: the implicit node_modules include, then configured files and CLI
// additions (so user excludes can trim node_modules), then the
// output-directory exclusion and the standard filters, with the manifest
// and the entry script as always-included roots.
func (p *Process) archiveSelection(outputDir string) (selector.Options, error) {
	configured, sets := splitDefs(p.app.Config.Files)
	globs := append([]string{"node_modules/**"}, configured...)
	globs = append(globs, p.additionalFiles...)
	if rel, err := filepath.Rel(p.app.Root, outputDir); err == nil && !strings.HasPrefix(rel, "..") {
		globs = append(globs, "!"+filepath.ToSlash(rel)+"/**")
	}
	globs = append(globs, standardFilters...)

	unpackGlobs := append(append([]string{}, p.app.Config.AsarUnpack...), p.additionalUnpack...)
	unpack, err := pattern.Compile(pattern.ParseRules(unpackGlobs))
	if err != nil {
		return selector.Options{}, err
	}

	alwaysInclude := []string{"package.json"}
	if p.app.Manifest.Main != "" {
		alwaysInclude = append(alwaysInclude, p.app.Manifest.Main)
	}

	return selector.Options{
		Rules:         pattern.ParseRules(globs),
		AlwaysInclude: alwaysInclude,
		Sets:          sets,
		Unpack:        unpack,
	}, nil
}

// extraSelection assembles the selector options for extraResources;
// include-only semantics, no structural defaults.
func (p *Process) extraSelection() selector.Options {
	globs, sets := splitDefs(p.app.Config.ExtraResources)
	globs = append(globs, p.additionalExtra...)
	return selector.Options{
		Rules: pattern.ParseRules(globs),
		Sets:  sets,
	}
}
