package service

import (
	"fmt"

	"github.com/louisbranch/musescore-mcp/internal/services/mcp/domain"
	"github.com/louisbranch/musescore-mcp/internal/services/mcp/host"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type mcpRegistrationKind int

const (
	mcpRegistrationKindTools mcpRegistrationKind = iota
	mcpRegistrationKindResources
)

type mcpRegistrationModule struct {
	name     string
	kind     mcpRegistrationKind
	register func(mcpRegistrationTarget) error
}

const (
	mcpConnectionToolsModuleName = "connection-tools"
	mcpCoreToolsModuleName       = "core-tools"
	mcpStepToolsModuleName       = "step-tools"
	mcpCatalogResourceModuleName = "catalog-resources"
)

type mcpRegistrationTarget interface {
	AddTool(*mcp.Tool, any) error
	AddResource(*mcp.Resource, mcp.ResourceHandler)
}

type mcpServerRegistrationAdapter struct {
	server *mcp.Server
}

func (r mcpServerRegistrationAdapter) AddTool(tool *mcp.Tool, handler any) error {
	return addMCPTool(r.server, tool, handler)
}

func (r mcpServerRegistrationAdapter) AddResource(resource *mcp.Resource, handler mcp.ResourceHandler) {
	r.server.AddResource(resource, handler)
}

type mcpToolRegistrar struct {
	matches func(any) bool
	add     func(*mcp.Server, *mcp.Tool, any)
}

func newMCPToolRegistrar[I any, O any]() mcpToolRegistrar {
	return mcpToolRegistrar{
		matches: func(handler any) bool {
			_, ok := handler.(mcp.ToolHandlerFor[I, O])
			return ok
		},
		add: func(server *mcp.Server, tool *mcp.Tool, handler any) {
			mcp.AddTool(server, tool, handler.(mcp.ToolHandlerFor[I, O]))
		},
	}
}

var mcpToolRegistrars = []mcpToolRegistrar{
	newMCPToolRegistrar[domain.NoParams, domain.ConnectResult](),
	newMCPToolRegistrar[domain.NoParams, host.Reply](),
	newMCPToolRegistrar[domain.ProcessSequenceInput, host.Reply](),
	newMCPToolRegistrar[domain.AddNoteParams, host.Reply](),
	newMCPToolRegistrar[domain.AddRestParams, host.Reply](),
	newMCPToolRegistrar[domain.AddTupletParams, host.Reply](),
	newMCPToolRegistrar[domain.AppendMeasureParams, host.Reply](),
	newMCPToolRegistrar[domain.DeleteSelectionParams, host.Reply](),
	newMCPToolRegistrar[domain.GoToMeasureParams, host.Reply](),
	newMCPToolRegistrar[domain.SetTimeSignatureParams, host.Reply](),
}

func addMCPTool(server *mcp.Server, tool *mcp.Tool, handler any) error {
	for _, registrar := range mcpToolRegistrars {
		if registrar.matches(handler) {
			registrar.add(server, tool, handler)
			return nil
		}
	}
	toolName := "<nil>"
	if tool != nil {
		toolName = tool.Name
	}
	return fmt.Errorf("mcp registration adapter does not support handler type %T for tool %q", handler, toolName)
}

func newMCPRegistrationModules(client domain.HostClient, opts Options) []mcpRegistrationModule {
	modules := []mcpRegistrationModule{
		{
			name: mcpConnectionToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(registrar mcpRegistrationTarget) error {
				return registerTool(registrar, domain.ConnectTool(), domain.ConnectHandler(client))
			},
		},
		{
			name: mcpCoreToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(registrar mcpRegistrationTarget) error {
				return registerActionTools(registrar, client, func(desc domain.ActionDescriptor) bool {
					return desc.Core
				})
			},
		},
		{
			name: mcpCatalogResourceModuleName,
			kind: mcpRegistrationKindResources,
			register: func(registrar mcpRegistrationTarget) error {
				registrar.AddResource(domain.CatalogResource(), domain.CatalogResourceHandler())
				return nil
			},
		},
	}
	if opts.StepTools {
		modules = append(modules, mcpRegistrationModule{
			name: mcpStepToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(registrar mcpRegistrationTarget) error {
				return registerActionTools(registrar, client, func(desc domain.ActionDescriptor) bool {
					return desc.Sequenceable && !desc.Core
				})
			},
		})
	}
	return modules
}

// registerActionTools registers one tool per catalog action selected by include.
func registerActionTools(registrar mcpRegistrationTarget, client domain.HostClient, include func(domain.ActionDescriptor) bool) error {
	for _, desc := range domain.Catalog() {
		if !include(desc) {
			continue
		}
		if err := registerTool(registrar, desc.Tool(), desc.Handler(client)); err != nil {
			return err
		}
	}
	return nil
}

func registerTool(registrar mcpRegistrationTarget, tool *mcp.Tool, handler any) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	return registrar.AddTool(tool, handler)
}
